package models

// Catalog is the class and elective offer of one level.
type Catalog struct {
	Level       string         `json:"level"`
	Classes     []ClassSection `json:"classes"`
	Electives   []Elective     `json:"electives"`
	GEElectives []GEElective   `json:"ge_electives"`
}

// FindClass returns the class section named name.
func (c *Catalog) FindClass(name string) (ClassSection, bool) {
	for _, class := range c.Classes {
		if class.Name == name {
			return class, true
		}
	}
	return ClassSection{}, false
}

// FindElective returns the elective with the given area and name.
func (c *Catalog) FindElective(area, name string) (Elective, bool) {
	for _, elective := range c.Electives {
		if elective.Area == area && elective.Name == name {
			return elective, true
		}
	}
	return Elective{}, false
}

// FindGE returns the general-education elective named name.
func (c *Catalog) FindGE(name string) (GEElective, bool) {
	for _, ge := range c.GEElectives {
		if ge.Name == name {
			return ge, true
		}
	}
	return GEElective{}, false
}

// ElectiveGroup returns the labels of the electives in choice group 1..3.
func (c *Catalog) ElectiveGroup(group int) []string {
	labels := make([]string, 0)
	for _, elective := range c.Electives {
		if elective.Group(c.Level) == group {
			labels = append(labels, elective.Label())
		}
	}
	return labels
}

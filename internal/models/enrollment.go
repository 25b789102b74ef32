package models

import "time"

// EnrollmentRecord is one differentiated elective admitted for a student in a process year.
type EnrollmentRecord struct {
	ID          string    `db:"id" json:"id"`
	StudentRUN  string    `db:"student_run" json:"student_run"`
	ElectiveID  int64     `db:"elective_id" json:"elective_id"`
	Position    int       `db:"position" json:"position"`
	ProcessYear int       `db:"process_year" json:"process_year"`
	ClassID     int64     `db:"class_id" json:"class_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentGERecord is the general-education elective admitted for a student in a process year.
type EnrollmentGERecord struct {
	ID           string    `db:"id" json:"id"`
	StudentRUN   string    `db:"student_run" json:"student_run"`
	GEElectiveID int64     `db:"ge_elective_id" json:"ge_elective_id"`
	ProcessYear  int       `db:"process_year" json:"process_year"`
	ClassID      int64     `db:"class_id" json:"class_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Admission is the resolved, admitted form of a submission.
type Admission struct {
	Student     Student
	Class       ClassSection
	Electives   [3]Elective
	GEElective  GEElective
	ProcessYear int
	AdmittedAt  time.Time
}

// RosterEntry is one admitted student with their selections, for staff listings.
type RosterEntry struct {
	StudentRUN  string    `db:"student_run" json:"student_run"`
	StudentName string    `db:"student_name" json:"student_name"`
	Email       string    `db:"email" json:"email"`
	ClassName   string    `db:"class_name" json:"class_name"`
	Elective1   string    `db:"elective_1" json:"elective_1"`
	Elective2   string    `db:"elective_2" json:"elective_2"`
	Elective3   string    `db:"elective_3" json:"elective_3"`
	GEElective  string    `db:"ge_elective" json:"ge_elective"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
	ProcessYear int       `db:"process_year" json:"process_year"`
}

// RosterFilter narrows roster listings.
type RosterFilter struct {
	ProcessYear int
	ClassID     int64
	Search      string
	Page        int
	PageSize    int
}

// CapacityUsage reports how many places of an elective are taken.
type CapacityUsage struct {
	ElectiveID int64  `db:"elective_id" json:"elective_id"`
	Name       string `db:"name" json:"name"`
	Area       string `db:"area" json:"area,omitempty"`
	ClassID    int64  `db:"class_id" json:"class_id,omitempty"`
	ClassName  string `db:"class_name" json:"class_name,omitempty"`
	Enrolled   int    `db:"enrolled" json:"enrolled"`
	Capacity   int    `db:"-" json:"capacity"`
	Remaining  int    `db:"-" json:"remaining"`
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

const (
	labelPrefix    = "Área "
	labelSeparator = ": "
)

// ErrMalformedLabel is returned by DecodeLabel for labels not produced by EncodeLabel.
var ErrMalformedLabel = errors.New("malformed elective label")

// Elective is a differentiated-training elective. Group columns are 0 when the
// elective is not offered for that level.
type Elective struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Area          string `db:"area" json:"area"`
	GroupThird    int    `db:"group_third" json:"group_third"`
	GroupFourth   int    `db:"group_fourth" json:"group_fourth"`
	EnabledThird  bool   `db:"enabled_third" json:"enabled_third"`
	EnabledFourth bool   `db:"enabled_fourth" json:"enabled_fourth"`
}

// Group returns the choice group (1..3) of the elective for level, or 0.
func (e Elective) Group(level string) int {
	switch level {
	case LevelThird:
		if e.EnabledThird {
			return e.GroupThird
		}
	case LevelFourth:
		if e.EnabledFourth {
			return e.GroupFourth
		}
	}
	return 0
}

// Label is the display label shown on the form.
func (e Elective) Label() string {
	return EncodeLabel(e.Area, e.Name)
}

// GEElective is a general-education elective. Its id space is independent of Elective.
type GEElective struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Level string `db:"level" json:"level"`
}

// Levels of the enrollment window.
const (
	LevelThird  = "third"
	LevelFourth = "fourth"
)

// EncodeLabel renders "Área <area>: <name>".
func EncodeLabel(area, name string) string {
	return labelPrefix + area + labelSeparator + name
}

// DecodeLabel splits a label produced by EncodeLabel back into area and name.
// The area ends at the first ": " so names may contain the separator.
func DecodeLabel(label string) (area, name string, err error) {
	rest, ok := strings.CutPrefix(label, labelPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks area prefix", ErrMalformedLabel, label)
	}
	area, name, ok = strings.Cut(rest, labelSeparator)
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks separator", ErrMalformedLabel, label)
	}
	if strings.TrimSpace(area) == "" || strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("%w: %q has empty area or name", ErrMalformedLabel, label)
	}
	return area, name, nil
}

// SameArea reports whether every area in areas is identical. Fewer than two
// areas are never considered the same.
func SameArea(areas ...string) bool {
	if len(areas) < 2 {
		return false
	}
	for _, a := range areas[1:] {
		if a != areas[0] {
			return false
		}
	}
	return true
}

package models

import "time"

// Confirmation is the content of the enrollment confirmation email.
type Confirmation struct {
	Name        string
	RUN         string
	Email       string
	ClassName   string
	Electives   [3]string
	GEElective  string
	ProcessYear int
	SubmittedAt time.Time
}

package models

// Student is a roster entry of the identity store. The enrollment API only reads it.
type Student struct {
	RUN      string `db:"run" json:"run"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
	ClassID  int64  `db:"class_id" json:"class_id"`
}

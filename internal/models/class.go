package models

// ClassSection ("curso") groups students of one level.
type ClassSection struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Level string `db:"level" json:"level"`
}

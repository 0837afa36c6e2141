package domain

import "time"

type Patient struct {
	ID         int64
	FullName   string
	Phone      string
	NationalID string
	Email      string
	Address    string
	CreatedAt  time.Time
	CreatedBy  string
}

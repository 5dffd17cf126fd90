package domain

import "time"

// Operator is a human who answers escalated cases.
type Operator struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

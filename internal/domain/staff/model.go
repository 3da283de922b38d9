package staff

import (
	"time"

	"breast-screening-service/internal/ports/auth"
)

// Status de la cuenta. Texto libre en el backend original; acá lo fijamos.
// @Enum Active, Inactive
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Account es una cuenta del personal (admin o doctor).
// El rol decide qué áreas puede tocar; lo consume el middleware vía claims.
type Account struct {
	ID string

	Name   string
	Email  string
	Role   auth.Role
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

import "time"

// User es la cuenta persistida, identificada de forma única por email.
// OtpCode es nil salvo entre un login exitoso y su verificación.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	OtpCode      *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

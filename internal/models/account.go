package models

import "time"

// Account is a registered user. An account starts unverified and cannot
// authenticate until a verification code has been accepted.
type Account struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	Username           string    `json:"username,omitempty"`
	PasswordHash       string    `json:"-"`
	Verified           bool      `json:"verified"`
	VerificationCode   string    `json:"-"`
	VerificationExpiry time.Time `json:"-"` // zero when no code is outstanding
	CreatedAt          time.Time `json:"created_at"`
}

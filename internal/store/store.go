package store

import (
	"context"
	"errors"
	"time"

	"cyberchat/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when an account with the email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// Store owns account, conversation, and session-token records. Implementations
// must perform ConsumeVerificationCode as a single atomic conditional update.
type Store interface {
	CreateAccount(ctx context.Context, email, username, passwordHash string) (*models.Account, error)
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountByID(ctx context.Context, id int64) (*models.Account, error)

	// SetVerificationCode overwrites any outstanding code; only the most
	// recent one is ever valid.
	SetVerificationCode(ctx context.Context, email, code string, expiry time.Time) error
	// ConsumeVerificationCode flips the account to verified and clears the
	// code, but only when code matches and now precedes the stored expiry.
	// It reports whether the flip happened; on false the account is unchanged.
	ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (bool, error)

	SaveTurn(ctx context.Context, turn models.ConversationTurn) (*models.ConversationTurn, error)
	TurnsByAccount(ctx context.Context, accountID int64) ([]models.ConversationTurn, error)

	SaveSessionToken(ctx context.Context, token string, accountID int64, createdAt, expiresAt time.Time) error
	SessionToken(ctx context.Context, token string) (accountID int64, expiresAt time.Time, err error)
	DeleteSessionToken(ctx context.Context, token string) error
	DeleteAccountSessionTokens(ctx context.Context, accountID int64) error
}

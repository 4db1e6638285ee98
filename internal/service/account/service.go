package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cyberchat/internal/auth"
	"cyberchat/internal/models"
	"cyberchat/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses never reveal whether an email is registered.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("please verify your email first")
	ErrInvalidCode        = errors.New("invalid or expired verification code")
	// ErrEmailDelivery marks verification-mail failures so handlers can map
	// them to an upstream error instead of a validation one.
	ErrEmailDelivery = errors.New("could not send verification email")
)

const codeTTL = 10 * time.Minute

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CodeSender delivers a verification code to an address.
type CodeSender interface {
	SendVerificationCode(to, code string) error
}

// Service handles account lifecycle: registration, email verification, login.
type Service struct {
	store  store.Store
	sender CodeSender
}

func NewService(st store.Store, sender CodeSender) *Service {
	return &Service{store: st, sender: sender}
}

// Register creates an unverified account, issues a verification code, and
// mails it to the address.
func (s *Service) Register(ctx context.Context, email, username, password string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if !emailPattern.MatchString(email) {
		return nil, errors.New("please enter a valid email address")
	}
	if len(password) < 6 {
		return nil, errors.New("password must be at least 6 characters")
	}
	if username != "" && len(username) < 3 {
		return nil, errors.New("username must be at least 3 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc, err := s.store.CreateAccount(ctx, email, username, hash)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.IssueVerificationCode(ctx, email); err != nil {
		return nil, err
	}
	return acc, nil
}

// IssueVerificationCode generates a fresh code with a 10 minute expiry,
// records it on the account, and mails it. Any prior outstanding code is
// overwritten, so only the most recent one is valid.
func (s *Service) IssueVerificationCode(ctx context.Context, email string) (string, time.Time, error) {
	code, err := generateVerificationCode()
	if err != nil {
		return "", time.Time{}, err
	}
	expiry := time.Now().UTC().Add(codeTTL)
	if err := s.store.SetVerificationCode(ctx, email, code, expiry); err != nil {
		return "", time.Time{}, fmt.Errorf("record verification code: %w", err)
	}
	if s.sender != nil {
		if err := s.sender.SendVerificationCode(email, code); err != nil {
			return "", time.Time{}, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
		}
	}
	return code, expiry, nil
}

// Verify checks the submitted code. On success the account becomes verified
// and the code is consumed; the updated account is returned.
func (s *Service) Verify(ctx context.Context, email, code string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, errors.New("email and verification code are required")
	}
	ok, err := s.store.ConsumeVerificationCode(ctx, email, code, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("verify account: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCode
	}
	return s.store.AccountByEmail(ctx, email)
}

// Login validates credentials against the store. Unverified accounts cannot
// authenticate regardless of password correctness.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	acc, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	if !acc.Verified {
		return nil, ErrEmailNotVerified
	}
	if !auth.VerifyPassword(password, acc.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// AccountByID resolves an authenticated account id to its record.
func (s *Service) AccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.store.AccountByID(ctx, id)
}

func generateVerificationCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cyberchat/internal/models"
	"cyberchat/internal/store"
)

// Store implements store.Store on top of database/sql.
type Store struct {
	db *sql.DB
}

// New wraps an opened, migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migration and shutdown.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateAccount(ctx context.Context, email, username, passwordHash string) (*models.Account, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, store.ErrEmailTaken
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, verified, created_at) VALUES (?, ?, ?, 0, ?)`,
		email, username, passwordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("account id: %w", err)
	}
	return &models.Account{ID: id, Email: email, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, verified, verification_code, verification_expiry, created_at
		 FROM users WHERE email = ?`, email,
	))
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, verified, verification_code, verification_expiry, created_at
		 FROM users WHERE id = ?`, id,
	))
}

func (s *Store) scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		acc    models.Account
		code   sql.NullString
		expiry sql.NullTime
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.Username, &acc.PasswordHash, &acc.Verified, &code, &expiry, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	if code.Valid {
		acc.VerificationCode = code.String
	}
	if expiry.Valid {
		acc.VerificationExpiry = expiry.Time
	}
	return &acc, nil
}

func (s *Store) SetVerificationCode(ctx context.Context, email, code string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET verification_code = ?, verification_expiry = ? WHERE email = ?`,
		code, expiry.UTC(), email,
	)
	if err != nil {
		return fmt.Errorf("set verification code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Verified flag, code, and expiry change together in one conditional UPDATE so
// concurrent verification attempts cannot interleave between check and flip.
func (s *Store) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET verified = 1, verification_code = NULL, verification_expiry = NULL
		 WHERE email = ? AND verification_code = ? AND verification_expiry > ?`,
		email, code, now.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) SaveTurn(ctx context.Context, turn models.ConversationTurn) (*models.ConversationTurn, error) {
	topics, err := json.Marshal(topicsOrEmpty(turn.SuggestedTopics))
	if err != nil {
		return nil, fmt.Errorf("encode topics: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, message, response, suggested_topics, is_security, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.AccountID, turn.Message, turn.Response, string(topics), turn.IsCyberSecurityRelated, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("turn id: %w", err)
	}
	turn.ID = id
	turn.CreatedAt = now
	return &turn, nil
}

func (s *Store) TurnsByAccount(ctx context.Context, accountID int64) ([]models.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, message, response, suggested_topics, is_security, created_at
		 FROM conversations WHERE user_id = ? ORDER BY id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var (
			t      models.ConversationTurn
			topics string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Message, &t.Response, &topics, &t.IsCyberSecurityRelated, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(topics), &t.SuggestedTopics); err != nil {
			return nil, fmt.Errorf("decode topics: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *Store) SaveSessionToken(ctx context.Context, token string, accountID int64, createdAt, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO session_tokens (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, accountID, createdAt.UTC(), expiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

func (s *Store) SessionToken(ctx context.Context, token string) (int64, time.Time, error) {
	var (
		accountID int64
		expires   time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM session_tokens WHERE token = ?`, token,
	).Scan(&accountID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, store.ErrNotFound
		}
		return 0, time.Time{}, fmt.Errorf("lookup session token: %w", err)
	}
	return accountID, expires, nil
}

func (s *Store) DeleteSessionToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccountSessionTokens(ctx context.Context, accountID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE user_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete account session tokens: %w", err)
	}
	return nil
}

func topicsOrEmpty(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

package memstore

import (
	"context"
	"sync"
	"time"

	"cyberchat/internal/models"
	"cyberchat/internal/store"
)

type sessionToken struct {
	accountID int64
	expiresAt time.Time
}

// Store is a map-backed store.Store for tests and runs without a database.
type Store struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	byEmail  map[string]int64
	turns    map[int64][]models.ConversationTurn
	tokens   map[string]sessionToken
	nextAcc  int64
	nextTurn int64
}

func New() *Store {
	return &Store{
		accounts: make(map[int64]*models.Account),
		byEmail:  make(map[string]int64),
		turns:    make(map[int64][]models.ConversationTurn),
		tokens:   make(map[string]sessionToken),
		nextAcc:  1,
		nextTurn: 1,
	}
}

func (s *Store) CreateAccount(_ context.Context, email, username, passwordHash string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, store.ErrEmailTaken
	}
	acc := &models.Account{
		ID:           s.nextAcc,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextAcc++
	s.accounts[acc.ID] = acc
	s.byEmail[email] = acc.ID
	out := *acc
	return &out, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *s.accounts[id]
	return &out, nil
}

func (s *Store) AccountByID(_ context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *acc
	return &out, nil
}

func (s *Store) SetVerificationCode(_ context.Context, email, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return store.ErrNotFound
	}
	acc := s.accounts[id]
	acc.VerificationCode = code
	acc.VerificationExpiry = expiry.UTC()
	return nil
}

// The mutex is held across check and flip, keeping the update atomic.
func (s *Store) ConsumeVerificationCode(_ context.Context, email, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return false, nil
	}
	acc := s.accounts[id]
	if acc.VerificationCode == "" || acc.VerificationCode != code {
		return false, nil
	}
	if acc.VerificationExpiry.IsZero() || !now.Before(acc.VerificationExpiry) {
		return false, nil
	}
	acc.Verified = true
	acc.VerificationCode = ""
	acc.VerificationExpiry = time.Time{}
	return true, nil
}

func (s *Store) SaveTurn(_ context.Context, turn models.ConversationTurn) (*models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[turn.AccountID]; !ok {
		return nil, store.ErrNotFound
	}
	turn.ID = s.nextTurn
	s.nextTurn++
	turn.CreatedAt = time.Now().UTC()
	if turn.SuggestedTopics == nil {
		turn.SuggestedTopics = []string{}
	}
	s.turns[turn.AccountID] = append(s.turns[turn.AccountID], turn)
	out := turn
	return &out, nil
}

func (s *Store) TurnsByAccount(_ context.Context, accountID int64) ([]models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns[accountID]
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *Store) SaveSessionToken(_ context.Context, token string, accountID int64, _, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = sessionToken{accountID: accountID, expiresAt: expiresAt}
	return nil
}

func (s *Store) SessionToken(_ context.Context, token string) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tokens[token]
	if !ok {
		return 0, time.Time{}, store.ErrNotFound
	}
	return st.accountID, st.expiresAt, nil
}

func (s *Store) DeleteSessionToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *Store) DeleteAccountSessionTokens(_ context.Context, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, st := range s.tokens {
		if st.accountID == accountID {
			delete(s.tokens, token)
		}
	}
	return nil
}

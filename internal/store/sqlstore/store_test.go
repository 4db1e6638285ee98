package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"cyberchat/internal/config"
	"cyberchat/internal/models"
	"cyberchat/internal/store"
)

func TestCreateAccountDuplicateEmail(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, "a@b.com", "alice", "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acc.ID <= 0 || acc.Verified {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if _, err := st.CreateAccount(ctx, "a@b.com", "other", "hash2"); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccountLookups(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	created, err := st.CreateAccount(ctx, "a@b.com", "alice", "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	byEmail, err := st.AccountByEmail(ctx, "a@b.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("AccountByEmail failed: %+v err=%v", byEmail, err)
	}
	byID, err := st.AccountByID(ctx, created.ID)
	if err != nil || byID.Email != "a@b.com" {
		t.Fatalf("AccountByID failed: %+v err=%v", byID, err)
	}
	if _, err := st.AccountByEmail(ctx, "missing@b.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumeVerificationCode(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.CreateAccount(ctx, "a@b.com", "", "hash"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := st.SetVerificationCode(ctx, "a@b.com", "ABC123", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("set code: %v", err)
	}

	ok, err := st.ConsumeVerificationCode(ctx, "a@b.com", "000000", now)
	if err != nil || ok {
		t.Fatalf("wrong code should not verify: ok=%v err=%v", ok, err)
	}
	acc, _ := st.AccountByEmail(ctx, "a@b.com")
	if acc.Verified || acc.VerificationCode != "ABC123" {
		t.Fatalf("failed check must not mutate account: %+v", acc)
	}

	ok, err = st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", now)
	if err != nil || !ok {
		t.Fatalf("correct code should verify: ok=%v err=%v", ok, err)
	}
	acc, _ = st.AccountByEmail(ctx, "a@b.com")
	if !acc.Verified || acc.VerificationCode != "" || !acc.VerificationExpiry.IsZero() {
		t.Fatalf("verified account should have code cleared: %+v", acc)
	}

	// codes are single-use
	ok, err = st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", now)
	if err != nil || ok {
		t.Fatalf("consumed code should not verify again: ok=%v err=%v", ok, err)
	}
}

func TestConsumeVerificationCodeExpiryBoundary(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()
	expiry := time.Now().UTC().Add(10 * time.Minute)

	if _, err := st.CreateAccount(ctx, "a@b.com", "", "hash"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := st.SetVerificationCode(ctx, "a@b.com", "ABC123", expiry); err != nil {
		t.Fatalf("set code: %v", err)
	}

	ok, err := st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", expiry.Add(time.Second))
	if err != nil || ok {
		t.Fatalf("expired code should fail: ok=%v err=%v", ok, err)
	}
	ok, err = st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", expiry.Add(-time.Second))
	if err != nil || !ok {
		t.Fatalf("code just before expiry should verify: ok=%v err=%v", ok, err)
	}
}

func TestSetVerificationCodeOverwrites(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.CreateAccount(ctx, "a@b.com", "", "hash"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := st.SetVerificationCode(ctx, "a@b.com", "FIRST1", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("set first code: %v", err)
	}
	if err := st.SetVerificationCode(ctx, "a@b.com", "SECOND", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("set second code: %v", err)
	}

	ok, err := st.ConsumeVerificationCode(ctx, "a@b.com", "FIRST1", now)
	if err != nil || ok {
		t.Fatalf("stale code should fail: ok=%v err=%v", ok, err)
	}
	ok, err = st.ConsumeVerificationCode(ctx, "a@b.com", "SECOND", now)
	if err != nil || !ok {
		t.Fatalf("latest code should verify: ok=%v err=%v", ok, err)
	}
}

func TestTurnsOrderAndIsolation(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	ctx := context.Background()

	alice, err := st.CreateAccount(ctx, "a@b.com", "", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateAccount(ctx, "b@b.com", "", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := st.SaveTurn(ctx, models.ConversationTurn{
			AccountID:              alice.ID,
			Message:                msg,
			Response:               "reply to " + msg,
			SuggestedTopics:        []string{"Phishing", "Passwords"},
			IsCyberSecurityRelated: true,
		}); err != nil {
			t.Fatalf("save turn: %v", err)
		}
	}

	turns, err := st.TurnsByAccount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list turns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, msg := range []string{"first", "second", "third"} {
		if turns[i].Message != msg {
			t.Fatalf("turns out of order: %+v", turns)
		}
	}
	if len(turns[0].SuggestedTopics) != 2 || turns[0].SuggestedTopics[0] != "Phishing" {
		t.Fatalf("topics not round-tripped: %+v", turns[0])
	}

	bobTurns, err := st.TurnsByAccount(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list bob turns: %v", err)
	}
	if len(bobTurns) != 0 {
		t.Fatalf("bob should not see alice's turns: %+v", bobTurns)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return New(db)
}

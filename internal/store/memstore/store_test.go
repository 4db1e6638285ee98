package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"cyberchat/internal/models"
	"cyberchat/internal/store"
)

func TestAccountLifecycle(t *testing.T) {
	st := New()
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, "a@b.com", "alice", "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acc.Verified {
		t.Fatalf("new account must start unverified")
	}
	if _, err := st.CreateAccount(ctx, "a@b.com", "", ""); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := st.AccountByEmail(ctx, "missing@b.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := st.AccountByID(ctx, acc.ID)
	if err != nil || got.Email != "a@b.com" {
		t.Fatalf("AccountByID failed: %+v err=%v", got, err)
	}
	// returned records are copies, not aliases into the store
	got.Verified = true
	fresh, _ := st.AccountByID(ctx, acc.ID)
	if fresh.Verified {
		t.Fatalf("mutating a returned account must not affect the store")
	}
}

func TestVerificationFlow(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := st.CreateAccount(ctx, "a@b.com", "", "hash"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := st.SetVerificationCode(ctx, "a@b.com", "ABC123", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("set code: %v", err)
	}

	if ok, _ := st.ConsumeVerificationCode(ctx, "a@b.com", "000000", now); ok {
		t.Fatalf("wrong code must not verify")
	}
	if ok, _ := st.ConsumeVerificationCode(ctx, "missing@b.com", "ABC123", now); ok {
		t.Fatalf("unknown email must not verify")
	}
	if ok, _ := st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", now.Add(11*time.Minute)); ok {
		t.Fatalf("expired code must not verify")
	}
	if ok, _ := st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", now); !ok {
		t.Fatalf("valid code must verify")
	}
	acc, _ := st.AccountByEmail(ctx, "a@b.com")
	if !acc.Verified || acc.VerificationCode != "" {
		t.Fatalf("verification must flip flag and clear code: %+v", acc)
	}
	if ok, _ := st.ConsumeVerificationCode(ctx, "a@b.com", "ABC123", now); ok {
		t.Fatalf("code is single-use")
	}
}

func TestTurnsPerAccount(t *testing.T) {
	st := New()
	ctx := context.Background()

	alice, _ := st.CreateAccount(ctx, "a@b.com", "", "")
	bob, _ := st.CreateAccount(ctx, "b@b.com", "", "")

	if _, err := st.SaveTurn(ctx, models.ConversationTurn{AccountID: 99, Message: "hi", Response: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("turn for unknown account should fail, got %v", err)
	}
	for _, msg := range []string{"one", "two"} {
		if _, err := st.SaveTurn(ctx, models.ConversationTurn{AccountID: alice.ID, Message: msg, Response: "r"}); err != nil {
			t.Fatalf("save turn: %v", err)
		}
	}

	turns, err := st.TurnsByAccount(ctx, alice.ID)
	if err != nil || len(turns) != 2 || turns[0].Message != "one" {
		t.Fatalf("unexpected turns: %+v err=%v", turns, err)
	}
	if turns[0].SuggestedTopics == nil {
		t.Fatalf("topics should be empty slice, not nil")
	}
	bobTurns, _ := st.TurnsByAccount(ctx, bob.ID)
	if len(bobTurns) != 0 {
		t.Fatalf("turns leaked across accounts: %+v", bobTurns)
	}
}

func TestSessionTokens(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now().UTC()

	acc, _ := st.CreateAccount(ctx, "a@b.com", "", "")
	if err := st.SaveSessionToken(ctx, "tok1", acc.ID, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := st.SaveSessionToken(ctx, "tok2", acc.ID, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("save token: %v", err)
	}

	accountID, expires, err := st.SessionToken(ctx, "tok1")
	if err != nil || accountID != acc.ID || !expires.After(now) {
		t.Fatalf("SessionToken failed: id=%d err=%v", accountID, err)
	}
	if err := st.DeleteSessionToken(ctx, "tok1"); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, _, err := st.SessionToken(ctx, "tok1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.DeleteAccountSessionTokens(ctx, acc.ID); err != nil {
		t.Fatalf("delete account tokens: %v", err)
	}
	if _, _, err := st.SessionToken(ctx, "tok2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected all account tokens removed, got %v", err)
	}
}

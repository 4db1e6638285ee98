package auth

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"cyberchat/internal/config"
	"cyberchat/internal/redis"
	"cyberchat/internal/store/sqlstore"
)

func TestAuthIssueValidateRevoke(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	accountID := insertAccount(t, st, "a@b.com")

	svc := NewService(st, nil, time.Hour)
	token, err := svc.IssueToken(context.Background(), accountID)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	got, err := svc.ValidateToken(context.Background(), token)
	if err != nil || got != accountID {
		t.Fatalf("ValidateToken failed: id=%d err=%v", got, err)
	}
	if err := svc.RevokeToken(context.Background(), token); err != nil {
		t.Fatalf("RevokeToken error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatalf("expected error after revoke")
	}
	// revoking twice is not an error
	if err := svc.RevokeToken(context.Background(), token); err != nil {
		t.Fatalf("second RevokeToken error: %v", err)
	}

	token2, err := svc.IssueToken(context.Background(), accountID)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if err := svc.RevokeAccountTokens(context.Background(), accountID); err != nil {
		t.Fatalf("RevokeAccountTokens error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token2); err == nil {
		t.Fatalf("expected error after revoke all")
	}
}

func TestAuthValidateExpiredToken(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	accountID := insertAccount(t, st, "b@b.com")

	svc := NewService(st, nil, 10*time.Millisecond)
	token, err := svc.IssueToken(context.Background(), accountID)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatalf("expected expiration error")
	}
	// ensure token removed
	var count int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM session_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not purged")
	}
}

func openTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := sqlstore.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlstore.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return sqlstore.New(db)
}

func insertAccount(t *testing.T, st *sqlstore.Store, email string) int64 {
	t.Helper()
	acc, err := st.CreateAccount(context.Background(), email, "", "")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc.ID
}

func TestAuthTokenCacheUsesRedis(t *testing.T) {
	st := openTestStore(t)
	defer st.Close()
	accountID := insertAccount(t, st, "c@b.com")

	cacheClient, cleanup := newRedisCacheClient(t)
	defer cleanup()

	svc := NewService(st, cacheClient, time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, accountID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	raw := cacheClient.Raw()
	if raw == nil {
		t.Fatalf("redis raw client nil")
	}
	key := redisTokenPrefix + token
	got, err := raw.Get(ctx, key).Result()
	if err != nil {
		t.Fatalf("get redis token: %v", err)
	}
	if got != strconv.FormatInt(accountID, 10) {
		t.Fatalf("expected account %d in rdb, got %s", accountID, got)
	}

	_, _ = st.DB().Exec(`DELETE FROM session_tokens WHERE token = ?`, token)
	validated, err := svc.ValidateToken(ctx, token)
	if err != nil || validated != accountID {
		t.Fatalf("ValidateToken via rdb failed: id=%d err=%v", validated, err)
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := raw.Get(ctx, key).Result(); err == nil {
		t.Fatalf("expected redis key deleted")
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected error after revoke and rdb delete")
	}
}

func newRedisCacheClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed auth tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host: host,
			Port: port,
			DB:   db,
		},
	}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if raw := client.Raw(); raw != nil {
		if err := raw.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush db: %v", err)
		}
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup
}

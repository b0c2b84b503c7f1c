package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/engine/detectors"
	"github.com/triage-ai/palisade-rasp/internal/store"
)

// testSecret is the raw app secret used in tests.
const testSecret = "rsk_test_valid_secret_1234567890abcdef"

var testCreds = Credentials{AppID: "app_abc", Secret: testSecret}

// testHash returns a bcrypt hash of testSecret using MinCost (fast for tests).
func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}
	return string(hash)
}

func testRow(t *testing.T) *store.App {
	return &store.App{
		ID:         "app_abc",
		SecretHash: testHash(t),
		Language:   "java",
		Mode:       "enforce",
		UpdatedAt:  time.Unix(1700000000, 0),
	}
}

// mockLookup implements AppLookup for testing.
type mockLookup struct {
	mu         sync.Mutex
	row        *store.App
	err        error
	lastPrefix string
	callCount  atomic.Int32
}

func (m *mockLookup) LookupBySecretPrefix(_ context.Context, prefix string) (*store.App, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrefix = prefix
	if m.err != nil {
		return nil, m.err
	}
	return m.row, nil
}

func (m *mockLookup) setRow(row *store.App) {
	m.mu.Lock()
	m.row = row
	m.mu.Unlock()
}

func newTestAuth(apps AppLookup, ttl time.Duration) *PostgresAuthenticator {
	return newPostgresAuthenticatorWithLookup(apps, NewAuthCache(ttl), zap.NewNop())
}

func TestPostgresAuth_CacheMiss_ValidSecret(t *testing.T) {
	apps := &mockLookup{row: testRow(t)}
	auth := newTestAuth(apps, time.Minute)

	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if app.AppID != "app_abc" {
		t.Errorf("expected app ID app_abc, got %s", app.AppID)
	}
	if app.EnforceMode != engine.EnforceBlock {
		t.Errorf("expected enforce mode, got %s", app.EnforceMode)
	}
	if app.Runtime != engine.RuntimeJava {
		t.Errorf("expected java runtime, got %s", app.Runtime)
	}
	if app.Policy != nil {
		t.Error("expected nil policy (no algorithm_config)")
	}
	if app.Version == "" {
		t.Error("expected a version")
	}
	if apps.lastPrefix != "rsk_test" {
		t.Errorf("looked up prefix %q, want rsk_test", apps.lastPrefix)
	}
	if apps.callCount.Load() != 1 {
		t.Errorf("expected 1 DB call, got %d", apps.callCount.Load())
	}
}

func TestPostgresAuth_CacheHit_NoDBCall(t *testing.T) {
	apps := &mockLookup{row: testRow(t)}
	auth := newTestAuth(apps, time.Minute)

	if _, err := auth.Authenticate(context.Background(), testCreds); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if apps.callCount.Load() != 1 {
		t.Errorf("expected still 1 DB call (cache hit), got %d", apps.callCount.Load())
	}
	if app.AppID != "app_abc" {
		t.Errorf("expected app_abc from cache, got %s", app.AppID)
	}
}

func TestPostgresAuth_InvalidSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"bcrypt mismatch", "rsk_test_wrong_secret_doesnt_match_hash"},
		{"wrong prefix", "tsk_test_valid_secret_1234567890abcdef"},
		{"too short", "rsk_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps := &mockLookup{row: testRow(t)}
			auth := newTestAuth(apps, time.Minute)

			_, err := auth.Authenticate(context.Background(), Credentials{AppID: "app_abc", Secret: tt.secret})
			if !errors.Is(err, ErrInvalidAppSecret) {
				t.Errorf("expected ErrInvalidAppSecret, got: %v", err)
			}
		})
	}
}

func TestPostgresAuth_AppNotFound(t *testing.T) {
	auth := newTestAuth(&mockLookup{}, time.Minute)

	_, err := auth.Authenticate(context.Background(), testCreds)
	if !errors.Is(err, ErrInvalidAppSecret) {
		t.Errorf("expected ErrInvalidAppSecret, got: %v", err)
	}
}

func TestPostgresAuth_AppIDMismatch(t *testing.T) {
	apps := &mockLookup{row: testRow(t)}
	auth := newTestAuth(apps, time.Minute)

	creds := Credentials{AppID: "app_other", Secret: testSecret}
	if _, err := auth.Authenticate(context.Background(), creds); !errors.Is(err, engine.ErrUnknownApp) {
		t.Errorf("expected ErrUnknownApp on miss, got: %v", err)
	}
	// Same answer once the secret is cached.
	if _, err := auth.Authenticate(context.Background(), creds); !errors.Is(err, engine.ErrUnknownApp) {
		t.Errorf("expected ErrUnknownApp on hit, got: %v", err)
	}
}

func TestPostgresAuth_DBDown_ReturnsUnavailable(t *testing.T) {
	auth := newTestAuth(&mockLookup{err: errors.New("connection refused")}, time.Minute)

	_, err := auth.Authenticate(context.Background(), testCreds)
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Errorf("expected ErrAuthUnavailable, got: %v", err)
	}
}

func TestPostgresAuth_MissingCredentials(t *testing.T) {
	apps := &mockLookup{}
	auth := newTestAuth(apps, time.Minute)

	if _, err := auth.Authenticate(context.Background(), Credentials{AppID: "app_abc"}); err != ErrMissingAppSecret {
		t.Errorf("expected ErrMissingAppSecret, got: %v", err)
	}
	if apps.callCount.Load() != 0 {
		t.Error("DB should not be called when the secret is missing")
	}
}

func TestPostgresAuth_PolicyParsing(t *testing.T) {
	row := testRow(t)
	row.Mode = "shadow"
	row.AlgorithmConfig = []byte(`{"ssrf_aws": {"action": "log"}, "ognl_exec": {"action": "block", "min_length": 10}}`)
	row.Whitelist = []byte(`[{"url": "shop.test/health", "hook": {"all": true}}]`)
	auth := newTestAuth(&mockLookup{row: row}, time.Minute)

	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if app.EnforceMode != engine.EnforceShadow {
		t.Errorf("expected shadow mode, got %s", app.EnforceMode)
	}
	if app.Policy == nil {
		t.Fatal("expected non-nil policy")
	}
	if got := app.Policy.Action(detectors.AlgSSRFAWS); got != engine.ActionLog {
		t.Errorf("ssrf_aws = %s, want log", got)
	}
	if got := app.Policy.MinLength(detectors.AlgOGNLExec, 30); got != 10 {
		t.Errorf("ognl min_length = %d, want 10", got)
	}
	// Unlisted algorithms keep their defaults.
	if got := app.Policy.Action(detectors.AlgSQLiUserInput); got != engine.ActionBlock {
		t.Errorf("sqli_userinput = %s, want block", got)
	}
	if len(app.Policy.Whitelist) != 1 {
		t.Errorf("whitelist = %+v", app.Policy.Whitelist)
	}
}

func TestPostgresAuth_EmptyConfigUsesServerDefaults(t *testing.T) {
	tests := []struct {
		name            string
		algorithmConfig string
		whitelist       string
	}{
		{"empty objects", "{}", "[]"},
		{"null columns", "", ""},
		{"json null", "null", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := testRow(t)
			row.AlgorithmConfig = []byte(tt.algorithmConfig)
			row.Whitelist = []byte(tt.whitelist)
			auth := newTestAuth(&mockLookup{row: row}, time.Minute)

			app, err := auth.Authenticate(context.Background(), testCreds)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if app.Policy != nil {
				t.Error("expected nil policy for empty config")
			}
		})
	}
}

func TestPostgresAuth_InvalidConfig_FallsBackToDefaults(t *testing.T) {
	row := testRow(t)
	row.AlgorithmConfig = []byte(`[1, 2, 3]`)
	auth := newTestAuth(&mockLookup{row: row}, time.Minute)

	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("expected no error (graceful fallback), got: %v", err)
	}
	if app.Policy != nil {
		t.Error("expected nil policy for unparseable config")
	}
}

func TestPostgresAuth_InvalidMode_Enforces(t *testing.T) {
	row := testRow(t)
	row.Mode = "sideways"
	auth := newTestAuth(&mockLookup{row: row}, time.Minute)

	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if app.EnforceMode != engine.EnforceBlock {
		t.Errorf("expected enforce, got %s", app.EnforceMode)
	}
}

func TestPostgresAuth_StaleHit_ServesStaleAndRefreshes(t *testing.T) {
	apps := &mockLookup{row: testRow(t)}
	auth := newTestAuth(apps, time.Millisecond)

	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if app.EnforceMode != engine.EnforceBlock {
		t.Fatalf("expected enforce, got %s", app.EnforceMode)
	}

	time.Sleep(5 * time.Millisecond)

	updated := testRow(t)
	updated.Mode = "shadow"
	updated.UpdatedAt = time.Unix(1700000100, 0)
	apps.setRow(updated)

	// Stale hit returns the old value immediately.
	app2, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if app2.EnforceMode != engine.EnforceBlock {
		t.Errorf("stale hit should return old mode=enforce, got %s", app2.EnforceMode)
	}

	// Wait for the background refresh.
	time.Sleep(200 * time.Millisecond)

	app3, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if app3.EnforceMode != engine.EnforceShadow {
		t.Errorf("expected refreshed mode=shadow, got %s", app3.EnforceMode)
	}
	if app3.Version == app.Version {
		t.Error("version should change with updated_at")
	}
}

func TestPostgresAuth_FailedRefreshDropsEntry(t *testing.T) {
	apps := &mockLookup{row: testRow(t)}
	auth := newTestAuth(apps, time.Millisecond)

	if _, err := auth.Authenticate(context.Background(), testCreds); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	apps.setRow(nil)

	// Stale hit triggers a refresh that finds no app.
	if _, err := auth.Authenticate(context.Background(), testCreds); err != nil {
		t.Fatalf("stale call failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, err := auth.Authenticate(context.Background(), testCreds); !errors.Is(err, ErrInvalidAppSecret) {
		t.Errorf("expected ErrInvalidAppSecret after deletion, got: %v", err)
	}
}

func TestPostgresAuth_InvalidateApp(t *testing.T) {
	apps := &mockLookup{row: testRow(t)}
	auth := newTestAuth(apps, time.Hour)

	if _, err := auth.Authenticate(context.Background(), testCreds); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	updated := testRow(t)
	updated.Mode = "shadow"
	apps.setRow(updated)

	// Still cached: the old mode is served without a lookup.
	app, _ := auth.Authenticate(context.Background(), testCreds)
	if app.EnforceMode != engine.EnforceBlock || apps.callCount.Load() != 1 {
		t.Fatalf("expected cached enforce mode after 1 lookup, got %s after %d", app.EnforceMode, apps.callCount.Load())
	}

	auth.InvalidateApp("app_abc")

	app, err := auth.Authenticate(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("call after invalidate failed: %v", err)
	}
	if app.EnforceMode != engine.EnforceShadow {
		t.Errorf("expected shadow after invalidate, got %s", app.EnforceMode)
	}
	if apps.callCount.Load() != 2 {
		t.Errorf("lookups = %d, want 2", apps.callCount.Load())
	}
}

var _ Authenticator = (*PostgresAuthenticator)(nil)
var _ Invalidator = (*PostgresAuthenticator)(nil)
var _ Authenticator = (*StaticAuthenticator)(nil)
var _ AppLookup = (*store.Store)(nil)

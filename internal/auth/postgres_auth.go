package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/palisade-rasp/internal/config"
	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/store"
)

// AppLookup abstracts the apps table for testability. *store.Store
// satisfies it. A missing app is (nil, nil).
type AppLookup interface {
	LookupBySecretPrefix(ctx context.Context, prefix string) (*store.App, error)
}

// PostgresAuthenticator validates app secrets against the apps table.
// Uses AuthCache with stale-while-revalidate to avoid DB + bcrypt on the hot path.
// Auth failures always return an error: no detector runs without a valid app.
type PostgresAuthenticator struct {
	apps   AppLookup
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return newPostgresAuthenticatorWithLookup(store.NewStore(cfg.DB), NewAuthCache(ttl), logger)
}

func newPostgresAuthenticatorWithLookup(apps AppLookup, cache *AuthCache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		apps:   apps,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate validates an app secret and ID.
//
// Flow:
//  1. Cache lookup by secret (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale app, spawn background refresh
//     - Miss: DB prefix lookup + bcrypt synchronously
//  2. The presented app ID must match the app owning the secret.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*AppContext, error) {
	if err := validate(creds); err != nil {
		return nil, err
	}

	var app *AppContext
	if result := a.cache.Get(creds.Secret); result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(creds.Secret)
		}
		app = result.App
	} else {
		fresh, err := a.lookupAndVerify(ctx, creds.Secret)
		if err != nil {
			return nil, a.handleLookupError(err)
		}
		a.cache.Set(creds.Secret, fresh)
		app = fresh
	}

	if app.AppID != creds.AppID {
		return nil, engine.ErrUnknownApp
	}
	return app, nil
}

// InvalidateApp forgets every cached secret of appID. A rotated secret
// stops working on this instance immediately.
func (a *PostgresAuthenticator) InvalidateApp(appID string) {
	if n := a.cache.InvalidateApp(appID); n > 0 {
		a.logger.Debug("auth cache invalidated", zap.String("app_id", appID), zap.Int("entries", n))
	}
}

// backgroundRefresh reloads one cache entry. The caller already got the
// stale value, so errors are only logged.
func (a *PostgresAuthenticator) backgroundRefresh(secret string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app, err := a.lookupAndVerify(ctx, secret)
	if err != nil {
		a.logger.Warn("background cache refresh failed", zap.Error(err))
		// Drop the entry so the next call does a synchronous lookup.
		a.cache.Delete(secret)
		return
	}
	a.cache.Set(secret, app)
}

// lookupAndVerify does the DB prefix lookup, bcrypt verification and
// policy parsing.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, secret string) (*AppContext, error) {
	if !strings.HasPrefix(secret, store.SecretPrefix) || len(secret) < store.SecretLookupLen {
		return nil, ErrInvalidAppSecret
	}

	row, err := a.apps.LookupBySecretPrefix(ctx, secret[:store.SecretLookupLen])
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}
	if row == nil {
		return nil, ErrInvalidAppSecret
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidAppSecret
	}

	return a.appContext(row), nil
}

func (a *PostgresAuthenticator) appContext(row *store.App) *AppContext {
	mode, err := engine.ParseEnforceMode(row.Mode)
	if err != nil {
		a.logger.Warn("invalid app mode, enforcing",
			zap.String("app_id", row.ID),
			zap.String("mode", row.Mode),
		)
		mode = engine.EnforceBlock
	}

	var policy *engine.PolicyConfig
	if hasStoredConfig(row) {
		parsed, err := config.ParseStored(row.AlgorithmConfig, row.Whitelist, a.logger.With(zap.String("app_id", row.ID)))
		if err != nil {
			a.logger.Warn("failed to parse algorithm_config, using defaults",
				zap.String("app_id", row.ID),
				zap.Error(err),
			)
		} else {
			policy = parsed
		}
	}

	return &AppContext{
		AppID:       row.ID,
		Runtime:     engine.ParseRuntime(row.Language),
		EnforceMode: mode,
		Policy:      policy,
		Version:     strconv.FormatInt(row.UpdatedAt.UnixNano(), 10),
	}
}

// hasStoredConfig reports whether an app overrides the server policy.
// Empty columns mean the server defaults apply.
func hasStoredConfig(row *store.App) bool {
	empty := func(raw []byte, zero string) bool {
		s := strings.TrimSpace(string(raw))
		return s == "" || s == zero || s == "null"
	}
	return !empty(row.AlgorithmConfig, "{}") || !empty(row.Whitelist, "[]")
}

// handleLookupError maps lookup failures. Bad secrets stay as they are;
// anything else is the DB being unreachable.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) error {
	if errors.Is(lookupErr, ErrInvalidAppSecret) {
		return ErrInvalidAppSecret
	}
	a.logger.Warn("auth DB unreachable", zap.Error(lookupErr))
	return fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}

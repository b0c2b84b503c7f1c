package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SecretPrefix starts every app secret.
const SecretPrefix = "rsk_"

// SecretLookupLen is how much of a secret is stored in clear for lookup.
const SecretLookupLen = 8

// App represents a row in the apps table: one protected application with
// its agent secret and algorithm configuration.
type App struct {
	ID              string
	Name            string
	SecretHash      string
	SecretPrefix    string
	Language        string // "java", "php" or "" (unknown)
	Mode            string // "enforce" or "shadow"
	AlgorithmConfig json.RawMessage // JSONB, algorithm name -> entry
	Whitelist       json.RawMessage // JSONB array of {url, hook}
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpdateAppParams holds optional fields for partial app updates.
type UpdateAppParams struct {
	Name     *string
	Language *string
	Mode     *string
}

// ReplaceConfigParams holds the algorithm config of an app. A nil field
// resets it to empty.
type ReplaceConfigParams struct {
	AlgorithmConfig json.RawMessage
	Whitelist       json.RawMessage
}

const appColumns = `id, name, secret_hash, secret_prefix, language, mode,
	algorithm_config, whitelist, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (*App, error) {
	var a App
	var algorithmConfig, whitelist []byte
	if err := row.Scan(&a.ID, &a.Name, &a.SecretHash, &a.SecretPrefix, &a.Language, &a.Mode,
		&algorithmConfig, &whitelist, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.AlgorithmConfig = json.RawMessage(algorithmConfig)
	a.Whitelist = json.RawMessage(whitelist)
	return &a, nil
}

// GenerateAppSecret creates a new rsk_ secret with its bcrypt hash and prefix.
// Returns (secret, hash, prefix, error). The secret is shown to the user once.
func GenerateAppSecret() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAppSecret: %w", err)
	}
	secret := SecretPrefix + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAppSecret: %w", err)
	}
	return secret, string(hash), secret[:SecretLookupLen], nil
}

// CreateApp inserts a new app with an empty algorithm config, which means
// the server defaults apply. Returns the app and its plaintext secret.
func (s *Store) CreateApp(ctx context.Context, name, language string) (*App, string, error) {
	secret, hash, prefix, err := GenerateAppSecret()
	if err != nil {
		return nil, "", fmt.Errorf("CreateApp: %w", err)
	}

	a, err := scanApp(s.db.QueryRowContext(ctx, `
		INSERT INTO apps (name, secret_hash, secret_prefix, language)
		VALUES ($1, $2, $3, $4)
		RETURNING `+appColumns,
		name, hash, prefix, language,
	))
	if err != nil {
		return nil, "", fmt.Errorf("CreateApp: %w", err)
	}
	return a, secret, nil
}

// ListApps returns all apps ordered by created_at DESC.
func (s *Store) ListApps(ctx context.Context) ([]*App, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+appColumns+` FROM apps ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListApps: %w", err)
	}
	defer rows.Close()

	var apps []*App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("ListApps: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// GetApp returns an app by ID, or nil if not found.
func (s *Store) GetApp(ctx context.Context, id string) (*App, error) {
	a, err := scanApp(s.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetApp: %w", err)
	}
	return a, nil
}

// UpdateApp applies a partial update to an app. Only non-nil fields are changed.
func (s *Store) UpdateApp(ctx context.Context, id string, params UpdateAppParams) (*App, error) {
	a, err := scanApp(s.db.QueryRowContext(ctx, `
		UPDATE apps SET
			name       = COALESCE($2, name),
			language   = COALESCE($3, language),
			mode       = COALESCE($4, mode),
			updated_at = now()
		WHERE id = $1
		RETURNING `+appColumns,
		id, params.Name, params.Language, params.Mode,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateApp: %w", err)
	}
	return a, nil
}

// ReplaceConfig fully replaces an app's algorithm config and whitelist.
// updated_at moves forward, which is what agents use to notice a change.
func (s *Store) ReplaceConfig(ctx context.Context, id string, params ReplaceConfigParams) (*App, error) {
	algorithmConfig := params.AlgorithmConfig
	if len(algorithmConfig) == 0 {
		algorithmConfig = json.RawMessage(`{}`)
	}
	whitelist := params.Whitelist
	if len(whitelist) == 0 {
		whitelist = json.RawMessage(`[]`)
	}

	a, err := scanApp(s.db.QueryRowContext(ctx, `
		UPDATE apps SET
			algorithm_config = $2,
			whitelist        = $3,
			updated_at       = now()
		WHERE id = $1
		RETURNING `+appColumns,
		id, []byte(algorithmConfig), []byte(whitelist),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ReplaceConfig: %w", err)
	}
	return a, nil
}

// DeleteApp deletes an app by ID.
func (s *Store) DeleteApp(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteApp: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RotateSecret generates a new secret for an app.
// Returns the updated app and the plaintext secret (shown once), or a nil
// app if not found.
func (s *Store) RotateSecret(ctx context.Context, id string) (*App, string, error) {
	secret, hash, prefix, err := GenerateAppSecret()
	if err != nil {
		return nil, "", fmt.Errorf("RotateSecret: %w", err)
	}

	a, err := scanApp(s.db.QueryRowContext(ctx, `
		UPDATE apps SET
			secret_hash   = $2,
			secret_prefix = $3,
			updated_at    = now()
		WHERE id = $1
		RETURNING `+appColumns,
		id, hash, prefix,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("RotateSecret: %w", err)
	}
	return a, secret, nil
}

// LookupBySecretPrefix finds an app by the clear prefix of its secret.
// Used by auth to narrow candidates before bcrypt verify. Returns nil if
// no app has that prefix.
func (s *Store) LookupBySecretPrefix(ctx context.Context, prefix string) (*App, error) {
	a, err := scanApp(s.db.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM apps WHERE secret_prefix = $1`, prefix))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupBySecretPrefix: %w", err)
	}
	return a, nil
}

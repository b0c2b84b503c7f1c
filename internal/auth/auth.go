package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

var (
	ErrMissingAppSecret = errors.New("missing authorization header")
	ErrInvalidAppSecret = errors.New("invalid app secret")
	ErrMissingAppID     = errors.New("missing x-rasp-app-id header")
	ErrAuthUnavailable  = errors.New("auth backend unavailable")
)

// Header and metadata keys carrying agent credentials. gRPC metadata keys
// are the lower-cased header names.
const (
	HeaderAuthorization = "Authorization"
	HeaderAppID         = "X-Rasp-App-Id"
)

// AppContext holds the authenticated app's configuration.
type AppContext struct {
	AppID       string
	Runtime     engine.RuntimeProfile // registered language, used when the agent omits it
	EnforceMode engine.EnforceMode
	Policy      *engine.PolicyConfig // nil = server defaults
	// Version changes whenever Policy does.
	Version string
}

// Invalidator is implemented by authenticators that cache app contexts.
// Admin changes to an app call it so they apply before the cache expires.
type Invalidator interface {
	InvalidateApp(appID string)
}

// Credentials are what an agent presents on every call.
type Credentials struct {
	AppID  string
	Secret string
}

// Authenticator validates agent credentials and returns the app context.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*AppContext, error)
}

// FromMetadata extracts credentials from incoming gRPC metadata:
// "authorization: Bearer rsk_..." and "x-rasp-app-id".
func FromMetadata(ctx context.Context) (Credentials, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Credentials{}, ErrMissingAppSecret
	}
	var creds Credentials
	if v := md.Get(strings.ToLower(HeaderAuthorization)); len(v) > 0 {
		creds.Secret = bearer(v[0])
	}
	if v := md.Get(strings.ToLower(HeaderAppID)); len(v) > 0 {
		creds.AppID = strings.TrimSpace(v[0])
	}
	return creds, validate(creds)
}

// FromHeader extracts credentials from HTTP request headers.
func FromHeader(h http.Header) (Credentials, error) {
	creds := Credentials{
		Secret: bearer(h.Get(HeaderAuthorization)),
		AppID:  strings.TrimSpace(h.Get(HeaderAppID)),
	}
	return creds, validate(creds)
}

func validate(creds Credentials) error {
	if creds.Secret == "" {
		return ErrMissingAppSecret
	}
	if creds.AppID == "" {
		return ErrMissingAppID
	}
	return nil
}

// bearer strips an RFC 6750 "Bearer" prefix (case-insensitive). A bare
// "Bearer" yields the empty secret.
func bearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) < 6 || !strings.EqualFold(token[:6], "bearer") {
		return token
	}
	rest := token[6:]
	if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
		return strings.TrimSpace(rest)
	}
	return token
}

// StaticAuthenticator serves a single app configured from the environment
// and a config file, for deployments without Postgres.
type StaticAuthenticator struct {
	app    *AppContext
	secret string
}

// NewStaticAuthenticator accepts exactly one app ID and secret. An empty
// secret accepts any non-empty one (local development).
func NewStaticAuthenticator(secret string, app *AppContext) *StaticAuthenticator {
	return &StaticAuthenticator{app: app, secret: secret}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, creds Credentials) (*AppContext, error) {
	if err := validate(creds); err != nil {
		return nil, err
	}
	if a.secret != "" && subtle.ConstantTimeCompare([]byte(creds.Secret), []byte(a.secret)) != 1 {
		return nil, ErrInvalidAppSecret
	}
	if creds.AppID != a.app.AppID {
		return nil, engine.ErrUnknownApp
	}
	return a.app, nil
}

package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/auth"
	"github.com/triage-ai/palisade-rasp/internal/chread"
	"github.com/triage-ai/palisade-rasp/internal/registry"
	"github.com/triage-ai/palisade-rasp/internal/server"
	"github.com/triage-ai/palisade-rasp/internal/store"
)

// AppStore is the part of *store.Store the admin endpoints use.
type AppStore interface {
	CreateApp(ctx context.Context, name, language string) (*store.App, string, error)
	ListApps(ctx context.Context) ([]*store.App, error)
	GetApp(ctx context.Context, id string) (*store.App, error)
	UpdateApp(ctx context.Context, id string, params store.UpdateAppParams) (*store.App, error)
	ReplaceConfig(ctx context.Context, id string, params store.ReplaceConfigParams) (*store.App, error)
	DeleteApp(ctx context.Context, id string) error
	RotateSecret(ctx context.Context, id string) (*store.App, string, error)
}

// EventReader is the part of *chread.Reader the event endpoints use.
type EventReader interface {
	ListEvents(ctx context.Context, params chread.ListEventsParams) ([]chread.EventRow, int, error)
	GetEvent(ctx context.Context, appID, requestID string) (*chread.EventRow, error)
	GetStats(ctx context.Context, appID string, days int) (*chread.StatsResult, error)
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Auth     auth.Authenticator
	Checker  *server.Checker
	Registry *registry.Registry
	Store    AppStore    // nil without Postgres
	Reader   EventReader // nil if ClickHouse unavailable
	Logger   *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Agent endpoints (app secret required)
	mux.HandleFunc("POST /v1/check/{hook}", deps.authMiddleware(deps.handleCheck))
	mux.HandleFunc("GET /v1/config", deps.authMiddleware(deps.handleExportConfig))

	// App registry (no auth, dashboard auth added later)
	mux.HandleFunc("POST /api/apps", deps.requireStore(deps.handleCreateApp))
	mux.HandleFunc("GET /api/apps", deps.requireStore(deps.handleListApps))
	mux.HandleFunc("GET /api/apps/{app_id}", deps.requireStore(deps.handleGetApp))
	mux.HandleFunc("PATCH /api/apps/{app_id}", deps.requireStore(deps.handleUpdateApp))
	mux.HandleFunc("DELETE /api/apps/{app_id}", deps.requireStore(deps.handleDeleteApp))
	mux.HandleFunc("POST /api/apps/{app_id}/rotate-secret", deps.requireStore(deps.handleRotateSecret))
	mux.HandleFunc("GET /api/apps/{app_id}/config", deps.requireStore(deps.handleGetConfig))
	mux.HandleFunc("PUT /api/apps/{app_id}/config", deps.requireStore(deps.handleReplaceConfig))

	// Attack events (no auth)
	mux.HandleFunc("GET /api/events", deps.requireReader(deps.handleListEvents))
	mux.HandleFunc("GET /api/events/{request_id}", deps.requireReader(deps.handleGetEvent))
	mux.HandleFunc("GET /api/stats", deps.requireReader(deps.handleGetStats))

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

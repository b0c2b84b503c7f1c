package api

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/auth"
	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/store"
)

var validModes = map[string]bool{"enforce": true, "shadow": true}

var validLanguages = map[string]bool{"": true, "java": true, "php": true}

func (d *Dependencies) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}
	if !validLanguages[req.Language] {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "language must be 'java', 'php' or empty"})
		return
	}

	app, secret, err := d.Store.CreateApp(r.Context(), req.Name, req.Language)
	if err != nil {
		d.Logger.Error("failed to create app", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create app"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateAppResp{AppResp: appToResp(app), Secret: secret})
}

func (d *Dependencies) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := d.Store.ListApps(r.Context())
	if err != nil {
		d.Logger.Error("failed to list apps", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list apps"})
		return
	}

	resp := make([]AppResp, 0, len(apps))
	for _, a := range apps {
		resp = append(resp, appToResp(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := d.Store.GetApp(r.Context(), r.PathValue("app_id"))
	if err != nil {
		d.Logger.Error("failed to get app", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get app"})
		return
	}
	if app == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "App not found."})
		return
	}
	writeJSON(w, http.StatusOK, appToResp(app))
}

func (d *Dependencies) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	var req UpdateAppReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name != nil && (len(*req.Name) == 0 || len(*req.Name) > 255) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}
	if req.Mode != nil && !validModes[*req.Mode] {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "mode must be 'enforce' or 'shadow'"})
		return
	}
	if req.Language != nil && !validLanguages[*req.Language] {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "language must be 'java', 'php' or empty"})
		return
	}

	app, err := d.Store.UpdateApp(r.Context(), r.PathValue("app_id"), store.UpdateAppParams{
		Name:     req.Name,
		Language: req.Language,
		Mode:     req.Mode,
	})
	if err != nil {
		d.Logger.Error("failed to update app", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update app"})
		return
	}
	if app == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "App not found."})
		return
	}
	d.invalidate(app.ID)
	writeJSON(w, http.StatusOK, appToResp(app))
}

func (d *Dependencies) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("app_id")
	err := d.Store.DeleteApp(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "App not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to delete app", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete app"})
		return
	}
	if d.Registry != nil {
		d.Registry.Forget(id)
	}
	d.invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dependencies) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	app, secret, err := d.Store.RotateSecret(r.Context(), r.PathValue("app_id"))
	if err != nil {
		d.Logger.Error("failed to rotate secret", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate secret"})
		return
	}
	if app == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "App not found."})
		return
	}
	d.invalidate(app.ID)
	writeJSON(w, http.StatusOK, RotateSecretResp{
		Secret:       secret,
		SecretPrefix: app.SecretPrefix,
	})
}

// invalidate drops cached credentials of an app so that a new secret,
// mode or config applies on the next agent call.
func (d *Dependencies) invalidate(appID string) {
	if inv, ok := d.Auth.(auth.Invalidator); ok {
		inv.InvalidateApp(appID)
	}
}

func appToResp(a *store.App) AppResp {
	return AppResp{
		ID:           a.ID,
		Name:         a.Name,
		SecretPrefix: a.SecretPrefix,
		Language:     engine.ParseRuntime(a.Language).String(),
		Mode:         a.Mode,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

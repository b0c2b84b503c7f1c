package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/config"
	"github.com/triage-ai/palisade-rasp/internal/store"
)

func (d *Dependencies) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	app, err := d.Store.GetApp(r.Context(), r.PathValue("app_id"))
	if err != nil {
		d.Logger.Error("failed to get app config", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get app config"})
		return
	}
	if app == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "App not found."})
		return
	}
	writeJSON(w, http.StatusOK, configToResp(app))
}

// handleReplaceConfig implements PUT /api/apps/{app_id}/config. The body is
// validated strictly. Agents served by this instance pick up the change on
// their next call, others when their auth cache entry refreshes.
func (d *Dependencies) handleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	var req AppConfigBody
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if err := config.Validate(req.AlgorithmConfig, req.Whitelist); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	app, err := d.Store.ReplaceConfig(r.Context(), r.PathValue("app_id"), store.ReplaceConfigParams{
		AlgorithmConfig: req.AlgorithmConfig,
		Whitelist:       req.Whitelist,
	})
	if err != nil {
		d.Logger.Error("failed to replace app config", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to replace app config"})
		return
	}
	if app == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "App not found."})
		return
	}
	d.invalidate(app.ID)
	writeJSON(w, http.StatusOK, configToResp(app))
}

func configToResp(a *store.App) AppConfigResp {
	ac := a.AlgorithmConfig
	if len(ac) == 0 {
		ac = json.RawMessage(`{}`)
	}
	wl := a.Whitelist
	if len(wl) == 0 {
		wl = json.RawMessage(`[]`)
	}
	return AppConfigResp{
		AppID:         a.ID,
		AppConfigBody: AppConfigBody{AlgorithmConfig: ac, Whitelist: wl},
		UpdatedAt:     a.UpdatedAt,
	}
}

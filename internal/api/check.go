package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/server"
)

// handleCheck implements POST /v1/check/{hook}.
// Auth middleware has already validated the app secret and injected the app.
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	var body CheckBody
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	app := appFromContext(r.Context())
	if app == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing app context"})
		return
	}

	req := server.CheckRequest{
		Hook:    r.PathValue("hook"),
		Params:  body.Params,
		Context: body.Context,
	}
	result, err := d.Checker.Check(app, &req, server.SourceHTTP)
	if errors.Is(err, server.ErrUnknownHook) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Unknown hook: " + req.Hook})
		return
	}
	if err != nil {
		d.Logger.Error("check failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Check failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleExportConfig implements GET /v1/config: the algorithm config a
// host enforces natively in export mode.
func (d *Dependencies) handleExportConfig(w http.ResponseWriter, r *http.Request) {
	app := appFromContext(r.Context())
	if app == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing app context"})
		return
	}

	exported, err := d.Checker.ExportConfig(app)
	if errors.Is(err, server.ErrNotExporting) {
		writeJSON(w, http.StatusConflict, ErrorResp{Detail: err.Error()})
		return
	}
	if err != nil {
		d.Logger.Error("export config failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Export failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(exported) //nolint:errcheck
}

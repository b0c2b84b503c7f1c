package api

import (
	"encoding/json"
	"time"

	"github.com/triage-ai/palisade-rasp/internal/chread"
	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// --- POST /v1/check/{hook} ---

// CheckBody is the JSON body for POST /v1/check/{hook}. The response is a
// server.CheckResult.
type CheckBody struct {
	Params  engine.Params           `json:"params"`
	Context engine.OperationContext `json:"context"`
}

// --- App registry ---

// CreateAppReq is the JSON body for POST /api/apps.
type CreateAppReq struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// CreateAppResp includes the plaintext secret (shown once).
type CreateAppResp struct {
	AppResp
	Secret string `json:"secret"`
}

// UpdateAppReq is the JSON body for PATCH /api/apps/{app_id}.
type UpdateAppReq struct {
	Name     *string `json:"name,omitempty"`
	Language *string `json:"language,omitempty"`
	Mode     *string `json:"mode,omitempty"`
}

// AppResp describes an app without its secret.
type AppResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SecretPrefix string    `json:"secret_prefix"`
	Language     string    `json:"language"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RotateSecretResp includes the new plaintext secret (shown once).
type RotateSecretResp struct {
	Secret       string `json:"secret"`
	SecretPrefix string `json:"secret_prefix"`
}

// --- App config ---

// AppConfigBody is both the PUT body and the GET response of
// /api/apps/{app_id}/config.
type AppConfigBody struct {
	AlgorithmConfig json.RawMessage `json:"algorithm_config"`
	Whitelist       json.RawMessage `json:"whitelist"`
}

// AppConfigResp adds bookkeeping to the stored config.
type AppConfigResp struct {
	AppID string `json:"app_id"`
	AppConfigBody
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Attack events ---

// EventListResp is the paginated event listing.
type EventListResp struct {
	Events   []chread.EventRow `json:"events"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

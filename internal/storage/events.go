package storage

import (
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// EventWriter is the interface for writing attack events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *AttackEvent)
	Close()
}

// AttackEvent is one non-clean verdict to be persisted.
type AttackEvent struct {
	RequestID      string
	AppID          string
	Timestamp      time.Time
	Hook           string
	Action         string // real verdict action
	ResponseAction string // what the agent was told to do
	IsShadow       bool
	Message        string
	Confidence     uint8
	URL            string
	Method         string
	ParamsPreview  string // JSON of the hook params, first 500 chars
	ParamsHash     string // SHA256 of the full params JSON
	Language       string
	ServerOS       string
	LatencyMs      float32
	Source         string // "grpc" or "http"
}

// PreviewLength is the max chars stored in params_preview.
const PreviewLength = 500

// Truncate returns the first N characters (runes) of s. It never splits a
// multi-byte UTF-8 character.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// EventInput carries what NewAttackEvent needs from a single check.
type EventInput struct {
	RequestID string
	AppID     string
	Hook      string
	Params    *engine.Params
	Context   *engine.OperationContext
	Decision  engine.Decision
	LatencyMs float32
	Source    string
}

// NewAttackEvent builds the persisted form of a check result.
func NewAttackEvent(in EventInput) *AttackEvent {
	raw, _ := json.Marshal(in.Params)
	sum := sha256.Sum256(raw)

	e := &AttackEvent{
		RequestID:      in.RequestID,
		AppID:          in.AppID,
		Timestamp:      time.Now(),
		Hook:           in.Hook,
		Action:         in.Decision.Real.Action.String(),
		ResponseAction: in.Decision.Verdict.Action.String(),
		IsShadow:       in.Decision.IsShadow,
		Message:        in.Decision.Real.Message,
		Confidence:     clampConfidence(in.Decision.Real.Confidence),
		ParamsPreview:  Truncate(string(raw), PreviewLength),
		ParamsHash:     string(sum[:]),
		LatencyMs:      in.LatencyMs,
		Source:         in.Source,
	}
	if oc := in.Context; oc != nil {
		e.URL = oc.URL
		e.Method = oc.Method
		e.Language = oc.Server.Runtime.String()
		e.ServerOS = oc.Server.OS
	}
	return e
}

func clampConfidence(c int) uint8 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return uint8(c)
}

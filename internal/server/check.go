package server

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/auth"
	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/registry"
	"github.com/triage-ai/palisade-rasp/internal/storage"
)

// ErrUnknownHook is returned for hook names outside engine.AllHooks.
var ErrUnknownHook = errors.New("unknown hook")

// ErrNotExporting is returned by ExportConfig when the engine evaluates
// every hook itself.
var ErrNotExporting = errors.New("engine is not in export mode")

// Event sources recorded with each attack event.
const (
	SourceGRPC = "grpc"
	SourceHTTP = "http"
)

var knownHooks = func() map[string]bool {
	m := make(map[string]bool, len(engine.AllHooks))
	for _, h := range engine.AllHooks {
		m[h] = true
	}
	return m
}()

// CheckRequest is one intercepted operation as sent by an agent.
type CheckRequest struct {
	Hook    string                  `json:"hook"`
	Params  engine.Params           `json:"params"`
	Context engine.OperationContext `json:"context"`
}

// CheckResult is what both transports return to the agent.
type CheckResult struct {
	RequestID  string  `json:"request_id"`
	Action     string  `json:"action"`
	Message    string  `json:"message"`
	Confidence int     `json:"confidence"`
	IsShadow   bool    `json:"is_shadow"`
	RealAction string  `json:"real_action"`
	LatencyMs  float32 `json:"latency_ms"`
}

// Checker runs one check for an authenticated app: engine lookup, verdict,
// enforce mode, and event write. Shared by the gRPC and HTTP transports.
type Checker struct {
	registry *registry.Registry
	writer   storage.EventWriter
	logger   *zap.Logger
}

// NewChecker creates a Checker.
func NewChecker(reg *registry.Registry, writer storage.EventWriter, logger *zap.Logger) *Checker {
	return &Checker{registry: reg, writer: writer, logger: logger}
}

// Check evaluates req for app. Only non-clean verdicts are written as
// attack events.
func (c *Checker) Check(app *auth.AppContext, req *CheckRequest, source string) (*CheckResult, error) {
	start := time.Now()

	if !knownHooks[req.Hook] {
		return nil, ErrUnknownHook
	}
	oc := &req.Context
	if oc.Server.Runtime == engine.RuntimeUnknown {
		oc.Server.Runtime = app.Runtime
	}

	eng := c.registry.Engine(app.AppID, app.Version, app.Policy)
	verdict := eng.Check(req.Hook, &req.Params, oc)
	decision := engine.Enforce(verdict, app.EnforceMode)

	requestID := uuid.New().String()
	latencyMs := float32(float64(time.Since(start)) / float64(time.Millisecond))

	if !decision.Real.IsClean() {
		c.writer.Write(storage.NewAttackEvent(storage.EventInput{
			RequestID: requestID,
			AppID:     app.AppID,
			Hook:      req.Hook,
			Params:    &req.Params,
			Context:   oc,
			Decision:  decision,
			LatencyMs: latencyMs,
			Source:    source,
		}))
	}

	return &CheckResult{
		RequestID:  requestID,
		Action:     decision.Verdict.Action.String(),
		Message:    decision.Verdict.Message,
		Confidence: decision.Verdict.Confidence,
		IsShadow:   decision.IsShadow,
		RealAction: decision.Real.Action.String(),
		LatencyMs:  latencyMs,
	}, nil
}

// ExportConfig returns the encoded algorithm config for the app's engine.
func (c *Checker) ExportConfig(app *auth.AppContext) ([]byte, error) {
	eng := c.registry.Engine(app.AppID, app.Version, app.Policy)
	exported, ok := eng.ExportedConfig()
	if !ok {
		return nil, ErrNotExporting
	}
	return exported, nil
}

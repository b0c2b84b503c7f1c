package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrUnknownApp is returned by registries when no engine exists for an app.
var ErrUnknownApp = errors.New("unknown app")

// Mode selects whether the engine evaluates every hook itself or hands the
// SQL and SSRF configuration to a host that enforces them natively.
type Mode int

const (
	ModeEvaluate Mode = iota
	ModeExport
)

func (m Mode) String() string {
	if m == ModeExport {
		return "export"
	}
	return "evaluate"
}

// ParseMode converts RASP_MODE style strings into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "evaluate":
		return ModeEvaluate, nil
	case "export":
		return ModeExport, nil
	}
	return ModeEvaluate, fmt.Errorf("unknown engine mode %q (valid: evaluate, export)", s)
}

// nativeHooks are enforced by the host itself in export mode.
var nativeHooks = map[string]bool{HookSQL: true, HookSSRF: true}

// Engine dispatches intercepted operations to the detector registered for
// their hook. It is built once at startup and is safe for concurrent use.
type Engine struct {
	policy    *PolicyConfig
	detectors map[string]Detector
	hooks     []string
	mode      Mode
	whitelist *Whitelist
	exported  []byte
	logger    *zap.Logger
}

// New registers detectors by hook name and logs the readiness message.
// In export mode the sql and ssrf detectors are left unregistered and the
// encoded algorithm config is prepared for the host.
func New(policy *PolicyConfig, detectors []Detector, mode Mode, logger *zap.Logger) *Engine {
	if policy == nil {
		policy = &PolicyConfig{}
	}
	e := &Engine{
		policy:    policy,
		detectors: make(map[string]Detector, len(detectors)),
		mode:      mode,
		logger:    logger,
	}

	for _, d := range detectors {
		name := d.Name()
		if mode == ModeExport && nativeHooks[name] {
			continue
		}
		if _, dup := e.detectors[name]; dup {
			logger.Warn("duplicate detector for hook, keeping first", zap.String("hook", name))
			continue
		}
		e.detectors[name] = d
	}
	for _, h := range AllHooks {
		if _, ok := e.detectors[h]; ok {
			e.hooks = append(e.hooks, h)
		}
	}

	wl, err := NewWhitelist(policy.Whitelist)
	if err != nil {
		logger.Warn("ignoring invalid whitelist entries", zap.Error(err))
	}
	e.whitelist = wl

	if mode == ModeExport {
		exported, err := ExportConfig(policy)
		if err != nil {
			// Unreachable for a well-typed PolicyConfig.
			logger.Error("failed to encode algorithm config", zap.Error(err))
		}
		e.exported = exported
	}

	logger.Debug("rasp engine built",
		zap.String("mode", mode.String()),
		zap.Strings("hooks", e.hooks),
		zap.Int("whitelist_rules", e.whitelist.Len()),
	)
	return e
}

// Check evaluates one operation. Unknown hooks, whitelisted requests and
// detector panics all yield the clean verdict.
func (e *Engine) Check(hook string, p *Params, oc *OperationContext) (v Verdict) {
	d, ok := e.detectors[hook]
	if !ok {
		e.logger.Debug("no detector registered for hook", zap.String("hook", hook))
		return Clean()
	}
	if p == nil {
		p = &Params{}
	}
	if oc == nil {
		oc = &OperationContext{}
	}
	if e.whitelist.Skips(oc.URL, hook) {
		return Clean()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("detector panicked",
				zap.String("hook", hook),
				zap.Any("panic", r),
			)
			v = Clean()
		}
	}()
	return d.Check(p, oc)
}

// Hooks returns the registered hooks in canonical order.
func (e *Engine) Hooks() []string {
	return append([]string(nil), e.hooks...)
}

// Mode returns the mode the engine was built with.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Policy returns the engine's algorithm configuration.
func (e *Engine) Policy() *PolicyConfig {
	return e.policy
}

// ExportedConfig returns the encoded algorithm config in export mode.
func (e *Engine) ExportedConfig() ([]byte, bool) {
	if e.mode != ModeExport || e.exported == nil {
		return nil, false
	}
	return e.exported, true
}

// ExportConfigKey is the host config key carrying the exported algorithms.
const ExportConfigKey = "algorithm.config"

// ExportConfig encodes the algorithm table as {"algorithm.config": {...}}
// with the cache sizing alongside the algorithm entries. Map keys are
// sorted by encoding/json, so output is deterministic.
func ExportConfig(pc *PolicyConfig) ([]byte, error) {
	if pc == nil {
		pc = &PolicyConfig{}
	}
	table := make(map[string]any, len(pc.Algorithms)+1)
	table["cache"] = pc.Cache
	for name, ap := range pc.Algorithms {
		table[name] = ap
	}
	out, err := json.Marshal(map[string]any{ExportConfigKey: table})
	if err != nil {
		return nil, fmt.Errorf("ExportConfig: %w", err)
	}
	return out, nil
}

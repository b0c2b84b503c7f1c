// Package registry keeps one detection engine per app. Apps without their
// own algorithm config share the server default engine.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/engine/detectors"
)

type entry struct {
	version string
	engine  *engine.Engine
}

// Registry builds engines lazily and rebuilds an app's engine when its
// config version changes. Safe for concurrent use.
type Registry struct {
	mode   engine.Mode
	tok    detectors.Tokenizer
	logger *zap.Logger

	fallback *engine.Engine

	mu   sync.RWMutex
	apps map[string]entry
}

// New builds the default engine from the server policy immediately.
func New(defaults *engine.PolicyConfig, mode engine.Mode, tok detectors.Tokenizer, logger *zap.Logger) *Registry {
	r := &Registry{
		mode:   mode,
		tok:    tok,
		logger: logger,
		apps:   make(map[string]entry),
	}
	r.fallback = r.build(defaults, zap.String("app_id", "default"))
	logger.Info("rasp engine initialized",
		zap.String("mode", mode.String()),
		zap.Strings("hooks", r.fallback.Hooks()),
	)
	return r
}

// Default returns the engine built from the server policy.
func (r *Registry) Default() *engine.Engine {
	return r.fallback
}

// Engine returns the engine for an app. A nil policy selects the default
// engine. The engine is rebuilt when version differs from the cached one;
// its SQL verdict cache starts empty again.
func (r *Registry) Engine(appID, version string, policy *engine.PolicyConfig) *engine.Engine {
	if policy == nil {
		return r.fallback
	}

	r.mu.RLock()
	e, ok := r.apps[appID]
	r.mu.RUnlock()
	if ok && e.version == version {
		return e.engine
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.apps[appID]; ok && e.version == version {
		return e.engine
	}
	eng := r.build(policy, zap.String("app_id", appID), zap.String("version", version))
	r.apps[appID] = entry{version: version, engine: eng}
	return eng
}

// Forget drops an app's engine, e.g. after the app is deleted.
func (r *Registry) Forget(appID string) {
	r.mu.Lock()
	delete(r.apps, appID)
	r.mu.Unlock()
}

// Len returns the number of per-app engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}

func (r *Registry) build(policy *engine.PolicyConfig, fields ...zap.Field) *engine.Engine {
	logger := r.logger.With(fields...)
	return engine.New(policy, detectors.Default(policy, r.tok), r.mode, logger)
}

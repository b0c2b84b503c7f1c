package registry

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/triage-ai/palisade-rasp/internal/config"
	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/engine/detectors"
	"github.com/triage-ai/palisade-rasp/internal/tokenize"
)

func newTestRegistry(mode engine.Mode) *Registry {
	return New(config.Defaults(), mode, tokenize.Lexer{}, zap.NewNop())
}

func TestRegistry_NilPolicyUsesDefault(t *testing.T) {
	r := newTestRegistry(engine.ModeEvaluate)

	if got := r.Engine("app_1", "1", nil); got != r.Default() {
		t.Error("nil policy should select the default engine")
	}
	if r.Len() != 0 {
		t.Errorf("default engine should not be cached per app, len=%d", r.Len())
	}
}

func TestRegistry_CachesByVersion(t *testing.T) {
	r := newTestRegistry(engine.ModeEvaluate)
	pc := config.Defaults()

	e1 := r.Engine("app_1", "1", pc)
	if e1 == r.Default() {
		t.Fatal("app policy should get its own engine")
	}
	if e2 := r.Engine("app_1", "1", pc); e2 != e1 {
		t.Error("same version should return the cached engine")
	}

	pc2 := config.Defaults()
	pc2.Algorithms[detectors.AlgSSRFAWS] = engine.AlgorithmPolicy{Action: engine.ActionLog}
	e3 := r.Engine("app_1", "2", pc2)
	if e3 == e1 {
		t.Error("new version should rebuild the engine")
	}
	if e3.Policy().Action(detectors.AlgSSRFAWS) != engine.ActionLog {
		t.Error("rebuilt engine should carry the new policy")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}

	r.Forget("app_1")
	if r.Len() != 0 {
		t.Errorf("len after Forget = %d", r.Len())
	}
}

func TestRegistry_ModeApplies(t *testing.T) {
	r := newTestRegistry(engine.ModeExport)

	if _, ok := r.Default().ExportedConfig(); !ok {
		t.Error("export mode should expose the algorithm config")
	}
	for _, h := range r.Engine("app_1", "1", config.Defaults()).Hooks() {
		if h == engine.HookSQL || h == engine.HookSSRF {
			t.Errorf("hook %s should not be registered in export mode", h)
		}
	}
}

func TestRegistry_ConcurrentEngine(t *testing.T) {
	r := newTestRegistry(engine.ModeEvaluate)
	pc := config.Defaults()

	var wg sync.WaitGroup
	engines := make([]*engine.Engine, 50)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i] = r.Engine("app_1", "1", pc)
		}(i)
	}
	wg.Wait()

	for i, e := range engines {
		if e != engines[0] {
			t.Fatalf("goroutine %d got a different engine", i)
		}
	}
}

func TestRegistry_LogsReadinessOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(config.Defaults(), engine.ModeEvaluate, tokenize.Lexer{}, zap.New(core))

	r.Engine("app_1", "1", config.Defaults())
	r.Engine("app_1", "2", config.Defaults())
	r.Engine("app_2", "1", config.Defaults())

	ready := logs.FilterMessage("rasp engine initialized").All()
	if len(ready) != 1 {
		t.Fatalf("readiness lines = %d, want 1", len(ready))
	}
	if ready[0].Level != zapcore.InfoLevel {
		t.Errorf("readiness level = %s, want info", ready[0].Level)
	}

	// One build for the default engine plus three per-app builds.
	built := logs.FilterMessage("rasp engine built").All()
	if len(built) != 4 {
		t.Fatalf("build lines = %d, want 4", len(built))
	}
	for _, entry := range built {
		if entry.Level != zapcore.DebugLevel {
			t.Errorf("build line at %s, want debug", entry.Level)
		}
	}
}

package detectors

import (
	"fmt"
	"strings"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/lexical"
)

// IncludeDetector inspects include/require style file inclusion.
type IncludeDetector struct {
	policy *engine.PolicyConfig
}

func NewIncludeDetector(policy *engine.PolicyConfig) *IncludeDetector {
	return &IncludeDetector{policy: policy}
}

func (d *IncludeDetector) Name() string { return engine.HookInclude }

// Check treats a target without "://" as a local path and anything else
// as a stream wrapper.
func (d *IncludeDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	if !strings.Contains(p.URL, "://") {
		return engine.FirstMatch(d.policy,
			engine.Rule{Algorithm: AlgIncludeOutsideWebroot, Match: func() (engine.Finding, bool) {
				if !lexical.IsOutsideWebroot(oc.AppBasePath, p.RealPath, p.URL) {
					return engine.Finding{}, false
				}
				return found100("File inclusion - including files outside webroot")
			}},
		)
	}

	proto := lexical.Scheme(p.URL, "://")
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgIncludeProtocol, Match: func() (engine.Finding, bool) {
			if !d.policy.Algorithm(AlgIncludeProtocol).HasProtocol(proto) {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("File inclusion - using unwanted protocol '%s://' with function %s()", proto, p.Function))
		}},
	)
}

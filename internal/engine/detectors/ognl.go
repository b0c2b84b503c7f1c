package detectors

import (
	"strings"
	"unicode/utf8"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// OGNLDetector looks for Struts exploit payloads in evaluated OGNL.
type OGNLDetector struct {
	policy *engine.PolicyConfig
}

func NewOGNLDetector(policy *engine.PolicyConfig) *OGNLDetector {
	return &OGNLDetector{policy: policy}
}

func (d *OGNLDetector) Name() string { return engine.HookOGNL }

// Check skips expressions shorter than min_length; framework internals
// evaluate many short expressions and payloads are never that small.
func (d *OGNLDetector) Check(p *engine.Params, _ *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgOGNLExec, Match: func() (engine.Finding, bool) {
			if utf8.RuneCountInString(p.Expression) < d.policy.MinLength(AlgOGNLExec, DefaultOGNLMinLength) {
				return engine.Finding{}, false
			}
			for _, payload := range ognlPayloads {
				if strings.Contains(p.Expression, payload) {
					return found100("OGNL exec - Trying to exploit a OGNL expression vulnerability")
				}
			}
			return engine.Finding{}, false
		}},
	)
}

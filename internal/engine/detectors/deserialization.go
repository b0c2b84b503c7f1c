package detectors

import "github.com/triage-ai/palisade-rasp/internal/engine"

// DeserializationDetector blocks gadget classes during deserialization.
type DeserializationDetector struct {
	policy *engine.PolicyConfig
}

func NewDeserializationDetector(policy *engine.PolicyConfig) *DeserializationDetector {
	return &DeserializationDetector{policy: policy}
}

func (d *DeserializationDetector) Name() string { return engine.HookDeserialization }

func (d *DeserializationDetector) Check(p *engine.Params, _ *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgTransformerDeserialize, Match: func() (engine.Finding, bool) {
			if !deserializationBlacklist[p.Clazz] {
				return engine.Finding{}, false
			}
			return found100("Transformer deserialization - unknown deserialize vulnerability detected")
		}},
	)
}

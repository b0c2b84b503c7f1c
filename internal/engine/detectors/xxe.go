package detectors

import (
	"fmt"
	"strings"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// XXEDetector inspects external entity resolution by XML parsers.
type XXEDetector struct {
	policy *engine.PolicyConfig
}

func NewXXEDetector(policy *engine.PolicyConfig) *XXEDetector {
	return &XXEDetector{policy: policy}
}

func (d *XXEDetector) Name() string { return engine.HookXXE }

func (d *XXEDetector) Check(p *engine.Params, _ *engine.OperationContext) engine.Verdict {
	var protocol, address string
	if parts := strings.Split(p.Entity, "://"); len(parts) >= 2 {
		protocol, address = strings.ToLower(parts[0]), parts[1]
	}

	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgXXEProtocol, Match: func() (engine.Finding, bool) {
			if protocol == "" || !d.policy.Algorithm(AlgXXEProtocol).HasProtocol(protocol) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("XXE - Using dangerous protocol %s", protocol))
		}},
		// UNC paths make Windows authenticate to the remote host and leak NTLM hashes.
		engine.Rule{Algorithm: AlgXXEProtocol, Match: func() (engine.Finding, bool) {
			if !strings.HasPrefix(p.Entity, `\\`) {
				return engine.Finding{}, false
			}
			return found100("XXE - Using dangerous protocol SMB")
		}},
		// Relative file entities such as file://xwork.dtd are legitimate.
		engine.Rule{Algorithm: AlgXXEFile, Match: func() (engine.Finding, bool) {
			if protocol != "file" || !strings.HasPrefix(address, "/") {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("XXE - Accessing file %s", address))
		}},
	)
}

package detectors

import (
	"fmt"
	"strings"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/lexical"
)

// SSRFDetector inspects outbound requests made by the application.
type SSRFDetector struct {
	policy *engine.PolicyConfig
}

func NewSSRFDetector(policy *engine.PolicyConfig) *SSRFDetector {
	return &SSRFDetector{policy: policy}
}

func (d *SSRFDetector) Name() string { return engine.HookSSRF }

func (d *SSRFDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	hostname := p.Hostname

	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgSSRFUserInput, Match: func() (engine.Finding, bool) {
			if len(p.IP) == 0 || !hasAnyPrefix(p.IP[0], intranetPrefixes) {
				return engine.Finding{}, false
			}
			if !lexical.IsFromUserInput(oc.Parameters, p.URL) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("SSRF - Requesting intranet address: %s", p.IP[0]))
		}},
		engine.Rule{Algorithm: AlgSSRFCommon, Match: func() (engine.Finding, bool) {
			domains := d.policy.Algorithm(AlgSSRFCommon).Domains
			if !lexical.IsDNSLogHostname(hostname, domains) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("SSRF - Requesting known DNSLOG address: %s", hostname))
		}},
		engine.Rule{Algorithm: AlgSSRFAWS, Match: func() (engine.Finding, bool) {
			if hostname != awsMetadataHost {
				return engine.Finding{}, false
			}
			return found100("SSRF - Requesting AWS metadata address")
		}},
		engine.Rule{Algorithm: AlgSSRFObfuscate, Match: func() (engine.Finding, bool) {
			switch {
			case isDecimalInteger(hostname):
				return found100(fmt.Sprintf("SSRF - Requesting numeric IP address: %s", hostname))
			case strings.HasPrefix(hostname, "0x") && !strings.Contains(hostname, "."):
				return found100(fmt.Sprintf("SSRF - Requesting hexadecimal IP address: %s", hostname))
			}
			return engine.Finding{}, false
		}},
		engine.Rule{Algorithm: AlgSSRFProtocol, Match: func() (engine.Finding, bool) {
			proto := lexical.Scheme(p.URL, ":")
			if proto == "" || !d.policy.Algorithm(AlgSSRFProtocol).HasProtocol(proto) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("SSRF - Using dangerous protocol: %s://", proto))
		}},
	)
}

// isDecimalInteger reports whether s is a non-empty run of ASCII digits,
// e.g. 2130706433 for 127.0.0.1.
func isDecimalInteger(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func found100(msg string) (engine.Finding, bool) {
	return engine.Finding{Message: msg, Confidence: 100}, true
}

func found90(msg string) (engine.Finding, bool) {
	return engine.Finding{Message: msg, Confidence: 90}, true
}

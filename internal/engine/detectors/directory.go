package detectors

import (
	"fmt"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/lexical"
)

// DirectoryDetector catches webshell file managers listing directories.
// Applications rarely list /home, /var/log and friends on their own.
type DirectoryDetector struct {
	policy *engine.PolicyConfig
}

func NewDirectoryDetector(policy *engine.PolicyConfig) *DirectoryDetector {
	return &DirectoryDetector{policy: policy}
}

func (d *DirectoryDetector) Name() string { return engine.HookDirectory }

func (d *DirectoryDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgDirectoryUnwanted, Match: func() (engine.Finding, bool) {
			if !unwantedDirectories[p.RealPath] {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("WebShell activity - Accessing sensitive folder: %s", p.RealPath))
		}},
		engine.Rule{Algorithm: AlgDirectoryOutsideWebroot, Match: func() (engine.Finding, bool) {
			if !lexical.IsOutsideWebroot(oc.AppBasePath, p.RealPath, p.Path) {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("Directory traversal - Accessing directory outside webroot (%s), directory is %s",
				oc.AppBasePath, p.RealPath))
		}},
		engine.Rule{Algorithm: AlgDirectoryReflect, Match: func() (engine.Finding, bool) {
			inspect, ok := fileManagerInspectors[oc.Server.Runtime]
			if !ok || len(p.Stack) == 0 {
				return engine.Finding{}, false
			}
			msg, hit := inspect(p.Stack)
			if !hit {
				return engine.Finding{}, false
			}
			return found90(msg)
		}},
	)
}

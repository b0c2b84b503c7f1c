package detectors

import (
	"fmt"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// WriteFileDetector flags writes to NTFS streams and server side scripts.
type WriteFileDetector struct {
	policy *engine.PolicyConfig
}

func NewWriteFileDetector(policy *engine.PolicyConfig) *WriteFileDetector {
	return &WriteFileDetector{policy: policy}
}

func (d *WriteFileDetector) Name() string { return engine.HookWriteFile }

func (d *WriteFileDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgWriteFileNTFS, Match: func() (engine.Finding, bool) {
			if !ntfsRegex.MatchString(p.RealPath) {
				return engine.Finding{}, false
			}
			return found90("File write - Writing NTFS alternative data streams")
		}},
		engine.Rule{Algorithm: AlgWriteFilePUTScript, Match: func() (engine.Finding, bool) {
			if oc.Method != "put" || !scriptFileRegex.MatchString(p.RealPath) {
				return engine.Finding{}, false
			}
			return found90("File upload - Using HTTP PUT method to upload a webshell")
		}},
		engine.Rule{Algorithm: AlgWriteFileScript, Match: func() (engine.Finding, bool) {
			if !scriptFileRegex.MatchString(p.RealPath) {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("File write - Creating or appending to a server-side script file, file is %s", p.RealPath))
		}},
	)
}

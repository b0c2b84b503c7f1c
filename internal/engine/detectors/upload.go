package detectors

import (
	"fmt"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// FileUploadDetector checks multipart/form-data upload filenames.
type FileUploadDetector struct {
	policy *engine.PolicyConfig
}

func NewFileUploadDetector(policy *engine.PolicyConfig) *FileUploadDetector {
	return &FileUploadDetector{policy: policy}
}

func (d *FileUploadDetector) Name() string { return engine.HookFileUpload }

func (d *FileUploadDetector) Check(p *engine.Params, _ *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgFileUploadMultipart, Match: func() (engine.Finding, bool) {
			if !scriptFileRegex.MatchString(p.Filename) && !ntfsRegex.MatchString(p.Filename) {
				return engine.Finding{}, false
			}
			return found90("File upload - Uploading a server-side script file with multipart/form-data protocol")
		}},
		engine.Rule{Algorithm: AlgFileUploadMultipart, Match: func() (engine.Finding, bool) {
			if !serverConfigFilenames[p.Filename] {
				return engine.Finding{}, false
			}
			return found90("File upload - Uploading a server-side config file with multipart/form-data protocol")
		}},
	)
}

// scriptRename reports a non-script source turned into a script dest,
// the shape of both a MOVE upload and a rename based webshell drop.
func scriptRename(p *engine.Params) bool {
	return !scriptFileRegex.MatchString(p.Source) && scriptFileRegex.MatchString(p.Dest)
}

// WebDAVDetector checks COPY and MOVE requests.
type WebDAVDetector struct {
	policy *engine.PolicyConfig
}

func NewWebDAVDetector(policy *engine.PolicyConfig) *WebDAVDetector {
	return &WebDAVDetector{policy: policy}
}

func (d *WebDAVDetector) Name() string { return engine.HookWebDAV }

func (d *WebDAVDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgFileUploadWebDAV, Match: func() (engine.Finding, bool) {
			if !scriptRename(p) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("File upload - Uploading a server-side script file with HTTP method %s, file is %s",
				oc.Method, p.Dest))
		}},
	)
}

// RenameDetector checks file renames performed by the application.
type RenameDetector struct {
	policy *engine.PolicyConfig
}

func NewRenameDetector(policy *engine.PolicyConfig) *RenameDetector {
	return &RenameDetector{policy: policy}
}

func (d *RenameDetector) Name() string { return engine.HookRename }

func (d *RenameDetector) Check(p *engine.Params, _ *engine.OperationContext) engine.Verdict {
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgRenameWebshell, Match: func() (engine.Finding, bool) {
			if !scriptRename(p) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("File upload - Renaming a non-script file to server-side script file, source file is %s", p.Source))
		}},
	)
}

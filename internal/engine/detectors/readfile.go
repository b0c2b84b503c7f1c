package detectors

import (
	"fmt"
	"strings"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/lexical"
)

// ReadFileDetector covers arbitrary file download and forceful browsing.
type ReadFileDetector struct {
	policy *engine.PolicyConfig
}

func NewReadFileDetector(policy *engine.PolicyConfig) *ReadFileDetector {
	return &ReadFileDetector{policy: policy}
}

func (d *ReadFileDetector) Name() string { return engine.HookReadFile }

func (d *ReadFileDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	// Evaluated at most once, and only when a userinput rule is reached.
	var fromUser *bool
	fromUserInput := func() bool {
		if fromUser == nil {
			v := lexical.IsFromUserInput(oc.Parameters, p.Path)
			fromUser = &v
		}
		return *fromUser
	}
	proto := lexical.Scheme(p.Path, "://")

	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgReadFileForceful, Match: func() (engine.Finding, bool) {
			return forcefulBrowsing(p, oc)
		}},
		engine.Rule{Algorithm: AlgReadFileUnwanted, Match: func() (engine.Finding, bool) {
			if !unwantedAbsolutePaths[strings.ToLower(p.RealPath)] {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("WebShell activity - Accessing sensitive file %s", p.RealPath))
		}},
		engine.Rule{Algorithm: AlgReadFileTraversal, Match: func() (engine.Finding, bool) {
			if !lexical.IsOutsideWebroot(oc.AppBasePath, p.RealPath, p.Path) {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("Path traversal - accessing files outside webroot (%s), file is %s",
				oc.AppBasePath, p.RealPath))
		}},
		engine.Rule{Algorithm: AlgReadFileUserInput, Match: func() (engine.Finding, bool) {
			if !fromUserInput() || !lexical.IsAbsolutePath(p.Path, oc.Server.OS) {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("Path traversal - Downloading files with absolute path, file is %s", p.RealPath))
		}},
		engine.Rule{Algorithm: AlgReadFileUserInput, Match: func() (engine.Finding, bool) {
			if !fromUserInput() || !lexical.HasTraversal(p.Path) {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("Path traversal - Downloading files with relative path, file is %s", p.RealPath))
		}},
		engine.Rule{Algorithm: AlgReadFileUserInputHTTP, Requires: AlgReadFileUserInput, Match: func() (engine.Finding, bool) {
			if (proto != "http" && proto != "https") || !fromUserInput() {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("SSRF - Requesting http/https resource with file streaming functions, URL is %s", p.Path))
		}},
		engine.Rule{Algorithm: AlgReadFileUserInputUnwanted, Requires: AlgReadFileUserInput, Match: func() (engine.Finding, bool) {
			if (proto != "file" && proto != "php") || !fromUserInput() {
				return engine.Finding{}, false
			}
			return found90(fmt.Sprintf("Path traversal - Requesting unwanted protocol %s", proto))
		}},
	)
}

// forcefulBrowsing flags a Java webapp serving an archive, dump or well
// known sensitive file whose name is exactly what the request asked for.
// A HEAD request for such a file is a scanner.
func forcefulBrowsing(p *engine.Params, oc *engine.OperationContext) (engine.Finding, bool) {
	if oc.Server.Runtime != engine.RuntimeJava || oc.URL == "" {
		return engine.Finding{}, false
	}
	requested := lexical.Basename(oc.URL)
	if requested == "" || requested != lexical.Basename(p.RealPath) {
		return engine.Finding{}, false
	}
	if !dotFilesRegex.MatchString(requested) && !unwantedFilenames[requested] {
		return engine.Finding{}, false
	}

	confidence := 90
	if oc.Method == "head" {
		confidence = 100
	}
	return engine.Finding{
		Message: fmt.Sprintf("Forceful browsing - Downloading sensitive file %s (HTTP method %s)",
			p.RealPath, strings.ToUpper(oc.Method)),
		Confidence: confidence,
	}, true
}

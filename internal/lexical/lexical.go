// Package lexical holds pure path and hostname predicates shared by the
// file, directory, include and SSRF detectors.
package lexical

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

const parentSegment = "/../"

// HasTraversal reports whether path contains at least two "/../" segments
// after backslashes are normalized to slashes. A single occurrence is
// common in legitimate relative paths.
func HasTraversal(path string) bool {
	p := strings.ReplaceAll(path, `\`, "/")
	first := strings.Index(p, parentSegment)
	if first < 0 {
		return false
	}
	// "/../../" overlaps on the shared slash; LastIndex still sees it.
	return strings.LastIndex(p, parentSegment) != first
}

// IsOutsideWebroot reports whether realPath escapes basePath and the raw
// path the application asked for contains a traversal.
func IsOutsideWebroot(basePath, realPath, rawPath string) bool {
	return !strings.Contains(realPath, basePath) && HasTraversal(rawPath)
}

// IsAbsolutePath reports whether path is absolute. On Windows a drive
// letter prefix ("C:") also counts.
func IsAbsolutePath(path, os string) bool {
	if os == "Windows" && len(path) >= 2 && path[1] == ':' && isASCIILetter(path[0]) {
		return true
	}
	return strings.HasPrefix(path, "/")
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsFromUserInput reports whether some request parameter's first scalar
// value equals target exactly.
func IsFromUserInput(params map[string]engine.Parameter, target string) bool {
	for _, p := range params {
		if v, ok := p.First(); ok && v == target {
			return true
		}
	}
	return false
}

// collaborationHosts are request catchers commonly used to confirm SSRF.
var collaborationHosts = map[string]bool{
	"requestb.in": true,
	"transfer.sh": true,
}

// IsDNSLogHostname reports whether hostname is a known collaboration host
// or ends with one of the DNS exfiltration suffixes (".ceye.io", ...).
// The registrable apex of a suffix ("ceye.io") matches as well.
func IsDNSLogHostname(hostname string, suffixes []string) bool {
	if collaborationHosts[hostname] {
		return true
	}
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(hostname, s) {
			return true
		}
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil || apex != hostname {
		return false
	}
	for _, s := range suffixes {
		if strings.TrimPrefix(s, ".") == apex {
			return true
		}
	}
	return false
}

// Basename returns everything after the last '/'.
func Basename(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// Scheme returns the lower-cased text before the first sep, or "" when
// sep does not occur.
func Scheme(s, sep string) string {
	i := strings.Index(s, sep)
	if i < 0 {
		return ""
	}
	return strings.ToLower(s[:i])
}

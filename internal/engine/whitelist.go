package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// hookAll in a whitelist entry disables every hook.
const hookAll = "all"

type whitelistRule struct {
	pattern string
	glob    glob.Glob // nil for plain prefix patterns
	hooks   map[string]bool
}

func (r whitelistRule) matches(target string) bool {
	if r.glob != nil {
		return r.glob.Match(target)
	}
	return strings.HasPrefix(target, r.pattern)
}

// Whitelist skips detection for request URLs matching configured patterns.
// Patterns are written without a scheme ("example.com/admin/"). A pattern
// containing glob metacharacters is compiled with '/' as separator,
// anything else is a prefix match.
type Whitelist struct {
	rules []whitelistRule
}

// NewWhitelist compiles whitelist entries. Entries with no enabled hook
// are dropped. An entry whose pattern does not compile is skipped and
// reported in the returned error; the Whitelist is usable either way.
func NewWhitelist(entries []WhitelistEntry) (*Whitelist, error) {
	wl := &Whitelist{}
	var errs []error
	for _, e := range entries {
		pattern := stripScheme(strings.TrimSpace(e.URL))
		if pattern == "" {
			continue
		}
		hooks := make(map[string]bool, len(e.Hooks))
		for h, on := range e.Hooks {
			if on {
				hooks[h] = true
			}
		}
		if len(hooks) == 0 {
			continue
		}
		rule := whitelistRule{pattern: pattern, hooks: hooks}
		if strings.ContainsAny(pattern, "*?[{") {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				errs = append(errs, fmt.Errorf("whitelist pattern %q: %w", e.URL, err))
				continue
			}
			rule.glob = g
		}
		wl.rules = append(wl.rules, rule)
	}
	return wl, errors.Join(errs...)
}

// Skips reports whether hook should not run for a request to url.
// Operations outside an HTTP request are never whitelisted.
func (wl *Whitelist) Skips(url, hook string) bool {
	if wl == nil || url == "" {
		return false
	}
	target := stripScheme(url)
	for _, r := range wl.rules {
		if !r.hooks[hookAll] && !r.hooks[hook] {
			continue
		}
		if r.matches(target) {
			return true
		}
	}
	return false
}

// Len returns the number of active whitelist rules.
func (wl *Whitelist) Len() int {
	if wl == nil {
		return 0
	}
	return len(wl.rules)
}

func stripScheme(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return u[i+3:]
	}
	return u
}

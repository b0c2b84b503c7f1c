package detectors

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// SQLDetector finds injected SQL by comparing the statement against
// request parameters and by scanning it for constructs applications
// rarely issue themselves.
type SQLDetector struct {
	policy *engine.PolicyConfig
	tok    engine.SQLTokenizer
	cache  *engine.VerdictCache
}

// NewSQLDetector creates the sql hook detector. cache may be nil.
func NewSQLDetector(policy *engine.PolicyConfig, tok engine.SQLTokenizer, cache *engine.VerdictCache) *SQLDetector {
	return &SQLDetector{policy: policy, tok: tok, cache: cache}
}

func (d *SQLDetector) Name() string { return engine.HookSQL }

// Check runs the user input match and then the statement policy scan.
// Clean queries are remembered so that repeats skip both.
func (d *SQLDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	if !d.policy.Enabled(AlgSQLiUserInput) && !d.policy.Enabled(AlgSQLiPolicy) {
		if d.cache != nil {
			d.cache.Put(p.Query)
		}
		return engine.Clean()
	}
	if d.cache != nil && d.cache.Lookup(p.Query) {
		return engine.Clean()
	}

	var tokens []string
	tokenized := false
	queryTokens := func() []string {
		if !tokenized {
			tokens = d.tok.TokenizeSQL(p.Query, p.Dialect)
			tokenized = true
		}
		return tokens
	}

	v := engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgSQLiUserInput, Match: func() (engine.Finding, bool) {
			return d.matchUserInput(p, oc, queryTokens)
		}},
		engine.Rule{Algorithm: AlgSQLiPolicy, Match: func() (engine.Finding, bool) {
			return d.scanPolicy(queryTokens())
		}},
	)
	if v.IsClean() && d.cache != nil {
		d.cache.Put(p.Query)
	}
	return v
}

// matchUserInput looks for a parameter value that, removed from the query,
// takes more than two tokens with it. A value equal to the whole query is
// a database manager rather than an injection.
func (d *SQLDetector) matchUserInput(p *engine.Params, oc *engine.OperationContext, queryTokens func() []string) (engine.Finding, bool) {
	minLength := d.policy.MinLength(AlgSQLiUserInput, DefaultSQLiMinLength)

	for _, name := range oc.ParameterNames() {
		for _, value := range oc.Parameters[name].ValueList() {
			if utf8.RuneCountInString(value) <= minLength {
				continue
			}
			if value == p.Query {
				if dbm := d.policy.Action(AlgSQLiDBManager); dbm != engine.ActionIgnore {
					return engine.Finding{
						Message:    fmt.Sprintf("SQLi - Database manager detected, request parameter name: %s", name),
						Confidence: 90,
						Action:     dbm,
					}, true
				}
				continue
			}
			if engine.SQLStructureAltered(d.tok, p.Dialect, p.Query, queryTokens(), value) == engine.DiffAltered {
				return engine.Finding{
					Message:    fmt.Sprintf("SQLi - SQL query structure altered by user input, request parameter name: %s", name),
					Confidence: 90,
				}, true
			}
		}
	}
	return engine.Finding{}, false
}

const unionNullWindow = 5

// scanPolicy walks the lower-cased tokens from position 1 and applies the
// enabled features in precedence order at each position.
func (d *SQLDetector) scanPolicy(tokens []string) (engine.Finding, bool) {
	ap := d.policy.Algorithm(AlgSQLiPolicy)
	feature := ap.Feature

	lc := make([]string, len(tokens))
	for i, t := range tokens {
		lc[i] = strings.ToLower(t)
	}

	for i := 1; i < len(lc); i++ {
		tok := lc[i]
		if tok == "" {
			continue
		}

		if feature[FeatureUnionNull] && tok == "select" {
			padding := 0
			for j := i + 1; j < len(lc) && j <= i+unionNullWindow; j++ {
				if lc[j] != "," && lc[j] != "null" && !hasNumericPrefix(lc[j]) {
					break
				}
				padding++
			}
			if padding >= unionNullWindow {
				return found100("SQLi - Detected UNION-NULL phrase in sql query")
			}
			continue
		}

		switch {
		case feature[FeatureStackedQuery] && tok == ";" && i != len(lc)-1:
			return found100("SQLi - Detected stacked queries")

		case feature[FeatureNoHex] && strings.HasPrefix(tok, "0x"):
			return found100("SQLi - Detected hexadecimal values in sql query")

		case feature[FeatureVersionComment] && strings.HasPrefix(tok, "/*!"):
			return found100("SQLi - Detected MySQL version comment in sql query")

		case feature[FeatureConstantCompare] && i < len(lc)-1 && isComparison(tok):
			left, lok := parseLeadingInt(lc[i-1])
			right, rok := parseLeadingInt(lc[i+1])
			if !lok || !rok {
				continue
			}
			// 1=1 and 2=0 are common in hand written queries.
			if tok[0] == '=' && (left < 10 || right < 10) {
				continue
			}
			return found100(fmt.Sprintf("SQLi - Detected blind sql injection attack: comparing %s against %s",
				formatNumber(left), formatNumber(right)))

		case feature[FeatureFunctionBlacklist] && tok[0] == '(':
			if fn := lc[i-1]; ap.FunctionBlacklist[fn] {
				return found100(fmt.Sprintf("SQLi - Detected dangerous method call %s() in sql query", fn))
			}

		case feature[FeatureIntoOutfile] && tok == "into" && i < len(lc)-1:
			if lc[i+1] == "outfile" {
				return found100("SQLi - Detected INTO OUTFILE phrase in sql query")
			}
		}
	}
	return engine.Finding{}, false
}

func isComparison(tok string) bool {
	if tok == "xor" {
		return true
	}
	return tok != "" && (tok[0] == '<' || tok[0] == '>' || tok[0] == '=')
}

func hasNumericPrefix(tok string) bool {
	_, ok := parseLeadingInt(tok)
	return ok
}

// parseLeadingInt reads an optionally signed decimal or 0x-prefixed hex
// integer from the start of s, ignoring whatever follows it. Tokens such
// as "1abc" are numeric, "abc1" and "0x" are not.
func parseLeadingInt(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	base, digits := 10.0, "0123456789"
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base, digits = 16, "0123456789abcdef"
		s = s[2:]
	}

	var (
		n    float64
		seen bool
	)
	for _, c := range strings.ToLower(s) {
		idx := strings.IndexRune(digits, c)
		if idx < 0 {
			break
		}
		n = n*base + float64(idx)
		seen = true
	}
	if !seen {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

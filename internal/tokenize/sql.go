// Package tokenize provides the lexers behind engine.SQLTokenizer and
// engine.CommandTokenizer. Both are deterministic and allocation-light;
// they classify nothing beyond token boundaries.
package tokenize

import "strings"

// Lexer implements both tokenizer interfaces. The zero value is ready to use.
type Lexer struct{}

// SQL dialects with lexical differences.
const (
	DialectMySQL  = "mysql"
	DialectPgSQL  = "pgsql"
	DialectOracle = "oracle"
	DialectMSSQL  = "mssql"
	DialectSQLite = "sqlite"
)

// multi-character operators, longest first.
var sqlOperators = []string{
	"<=>", "<=", ">=", "<>", "!=", "||", "&&", ":=", "<<", ">>", "::", "->>", "->",
}

// TokenizeSQL splits a SQL statement into tokens. Whitespace is dropped;
// comments are kept as single tokens so that "/*!" version comments stay
// visible to the policy scan.
func (Lexer) TokenizeSQL(text, dialect string) []string {
	dialect = strings.ToLower(dialect)
	mysql := dialect == DialectMySQL || dialect == ""
	var tokens []string

	i, n := 0, len(text)
	for i < n {
		c := text[i]
		switch {
		case isSpace(c):
			i++

		case c == '-' && i+1 < n && text[i+1] == '-':
			end := lineEnd(text, i)
			tokens = append(tokens, text[i:end])
			i = end

		case c == '#' && mysql:
			end := lineEnd(text, i)
			tokens = append(tokens, text[i:end])
			i = end

		case c == '/' && i+1 < n && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end = i + 2 + end + 2
			}
			tokens = append(tokens, text[i:end])
			i = end

		case c == '\'':
			end := quotedEnd(text, i, '\'', mysql)
			tokens = append(tokens, text[i:end])
			i = end

		case c == '"':
			end := quotedEnd(text, i, '"', mysql)
			tokens = append(tokens, text[i:end])
			i = end

		case c == '`' && mysql:
			end := quotedEnd(text, i, '`', false)
			tokens = append(tokens, text[i:end])
			i = end

		case c == '[' && dialect == DialectMSSQL:
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				end = n
			} else {
				end = i + end + 1
			}
			tokens = append(tokens, text[i:end])
			i = end

		case c == '$' && dialect == DialectPgSQL && dollarTag(text, i) != "":
			end := dollarQuotedEnd(text, i)
			tokens = append(tokens, text[i:end])
			i = end

		case c == '0' && i+1 < n && (text[i+1] == 'x' || text[i+1] == 'X'):
			end := i + 2
			for end < n && isHex(text[end]) {
				end++
			}
			tokens = append(tokens, text[i:end])
			i = end

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(text[i+1])):
			end := numberEnd(text, i)
			tokens = append(tokens, text[i:end])
			i = end

		case isIdentStart(c) || c == '@':
			end := i + 1
			if c == '@' && end < n && text[end] == '@' {
				end++
			}
			for end < n && isIdentPart(text[end]) {
				end++
			}
			tokens = append(tokens, text[i:end])
			i = end

		default:
			op := string(c)
			for _, candidate := range sqlOperators {
				if strings.HasPrefix(text[i:], candidate) {
					op = candidate
					break
				}
			}
			tokens = append(tokens, op)
			i += len(op)
		}
	}
	return tokens
}

func lineEnd(s string, from int) int {
	if j := strings.IndexByte(s[from:], '\n'); j >= 0 {
		return from + j
	}
	return len(s)
}

// quotedEnd returns the index just past the closing quote. A doubled
// quote is an escaped quote; backslash escapes apply when backslash is set.
// An unterminated literal runs to the end of the input.
func quotedEnd(s string, start int, quote byte, backslash bool) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if backslash {
				i++
			}
		case quote:
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

// dollarTag returns "$tag$" starting at s[start], or "" if s[start:] does
// not open a dollar-quoted string.
func dollarTag(s string, start int) string {
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[start : i+1]
		}
		if !isIdentPart(c) {
			return ""
		}
	}
	return ""
}

func dollarQuotedEnd(s string, start int) int {
	tag := dollarTag(s, start)
	body := start + len(tag)
	if j := strings.Index(s[body:], tag); j >= 0 {
		return body + j + len(tag)
	}
	return len(s)
}

func numberEnd(s string, i int) int {
	n := len(s)
	for i < n && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < n && isDigit(s[j]) {
			i = j
			for i < n && isDigit(s[i]) {
				i++
			}
		}
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

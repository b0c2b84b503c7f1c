package tokenize

import (
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

type shellToken struct {
	offset uint
	text   string
}

// TokenizeCommand splits a shell command line into words and operators.
// Words keep their source form (quotes included) so that removing a
// substring from the command changes the tokens the way a shell would see
// it. Input bash cannot parse falls back to a quote-aware splitter.
func (Lexer) TokenizeCommand(text string) []string {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(text), "")
	if err != nil {
		return splitCommand(text)
	}

	var toks []shellToken
	emit := func(pos syntax.Pos, s string) {
		if pos.IsValid() && s != "" {
			toks = append(toks, shellToken{offset: pos.Offset(), text: s})
		}
	}
	source := func(n syntax.Node) string {
		start, end := n.Pos().Offset(), n.End().Offset()
		if !n.Pos().IsValid() || end > uint(len(text)) || start > end {
			return ""
		}
		return text[start:end]
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Word:
			emit(n.Pos(), source(n))
			return false
		case *syntax.Assign:
			emit(n.Pos(), source(n))
			return false
		case *syntax.Lit:
			emit(n.Pos(), n.Value)
		case *syntax.Stmt:
			if n.Negated {
				emit(n.Position, "!")
			}
			if n.Semicolon.IsValid() {
				op := ";"
				if n.Background {
					op = "&"
				}
				emit(n.Semicolon, op)
			}
		case *syntax.BinaryCmd:
			emit(n.OpPos, n.Op.String())
		case *syntax.Redirect:
			emit(n.OpPos, n.Op.String())
		case *syntax.Subshell:
			emit(n.Lparen, "(")
			emit(n.Rparen, ")")
		case *syntax.Block:
			emit(n.Lbrace, "{")
			emit(n.Rbrace, "}")
		}
		return true
	})

	sort.SliceStable(toks, func(i, j int) bool { return toks[i].offset < toks[j].offset })
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.text
	}
	return out
}

// splitCommand splits on unquoted whitespace and separates the shell
// control operators ; & | < > ( ). Unterminated quotes run to the end.
func splitCommand(text string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quote  byte
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == '\\' && quote == '"' && i+1 < len(text) {
				i++
				cur.WriteByte(text[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == '\\' && i+1 < len(text):
			cur.WriteByte(c)
			i++
			cur.WriteByte(text[i])
		case isSpace(c):
			flush()
		case strings.IndexByte(";&|<>()", c) >= 0:
			flush()
			op := string(c)
			if i+1 < len(text) && (text[i+1] == c || (c == '>' && text[i+1] == '&') || (c == '|' && text[i+1] == '&')) {
				op += string(text[i+1])
				i++
			}
			tokens = append(tokens, op)
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

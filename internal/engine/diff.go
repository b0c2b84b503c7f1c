package engine

import "strings"

// SQLTokenizer splits a SQL statement into lexical tokens for a dialect
// ("mysql", "pgsql", "oracle", ...). Implementations must be deterministic.
type SQLTokenizer interface {
	TokenizeSQL(text, dialect string) []string
}

// CommandTokenizer splits a shell command line into lexical tokens.
type CommandTokenizer interface {
	TokenizeCommand(text string) []string
}

// DiffOutcome is the result of removing a candidate value from a statement
// and comparing token structure before and after.
type DiffOutcome int

const (
	// DiffNotApplicable means the value does not occur in the text.
	DiffNotApplicable DiffOutcome = iota
	DiffUnchanged
	DiffAltered
)

const (
	sqlTokenDelta     = 2
	commandTokenDelta = 1
)

// SQLStructureAltered reports whether removing value from text changes the
// token count by more than two. tokens must be the tokenization of text.
func SQLStructureAltered(tok SQLTokenizer, dialect, text string, tokens []string, value string) DiffOutcome {
	if value == "" || !strings.Contains(text, value) {
		return DiffNotApplicable
	}
	reduced := tok.TokenizeSQL(strings.ReplaceAll(text, value, ""), dialect)
	if len(tokens)-len(reduced) > sqlTokenDelta {
		return DiffAltered
	}
	return DiffUnchanged
}

// CommandStructureAltered reports whether removing value from text changes
// the token count by more than one, or changes the final token.
func CommandStructureAltered(tok CommandTokenizer, text string, tokens []string, value string) DiffOutcome {
	if value == "" || !strings.Contains(text, value) {
		return DiffNotApplicable
	}
	reduced := tok.TokenizeCommand(strings.ReplaceAll(text, value, ""))
	if len(tokens)-len(reduced) > commandTokenDelta {
		return DiffAltered
	}
	if lastToken(tokens) != lastToken(reduced) {
		return DiffAltered
	}
	return DiffUnchanged
}

func lastToken(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// Package detectors implements one engine.Detector per hook.
package detectors

import "github.com/triage-ai/palisade-rasp/internal/engine"

// Tokenizer is the lexer pair the SQL and command detectors diff with.
type Tokenizer interface {
	engine.SQLTokenizer
	engine.CommandTokenizer
}

// Default builds the full detector set for a policy. The SQL verdict
// cache is sized from the policy.
func Default(policy *engine.PolicyConfig, tok Tokenizer) []engine.Detector {
	return []engine.Detector{
		NewSQLDetector(policy, tok, engine.NewVerdictCache(policy.SQLiCacheCapacity())),
		NewSSRFDetector(policy),
		NewDirectoryDetector(policy),
		NewReadFileDetector(policy),
		NewIncludeDetector(policy),
		NewWriteFileDetector(policy),
		NewFileUploadDetector(policy),
		NewWebDAVDetector(policy),
		NewRenameDetector(policy),
		NewCommandDetector(policy, tok),
		NewXXEDetector(policy),
		NewOGNLDetector(policy),
		NewDeserializationDetector(policy),
	}
}

// Package config builds the algorithm configuration: the built-in
// defaults, overridden by a YAML or JSON document or a stored app config.
package config

import (
	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/engine/detectors"
)

func block() engine.AlgorithmPolicy  { return engine.AlgorithmPolicy{Action: engine.ActionBlock} }
func logged() engine.AlgorithmPolicy { return engine.AlgorithmPolicy{Action: engine.ActionLog} }

func intPtr(i int) *int { return &i }

// DefaultDNSLogDomains are suffixes of public DNS exfiltration services.
var DefaultDNSLogDomains = []string{
	".ceye.io",
	".vcap.me",
	".xip.name",
	".xip.io",
	".nip.io",
	".burpcollaborator.net",
	".tu4.org",
}

// DefaultSQLFunctionBlacklist lists functions used for file access,
// timing and error based injection, and blind extraction.
var DefaultSQLFunctionBlacklist = []string{
	"load_file",
	"benchmark", "sleep", "pg_sleep",
	"is_srvrolemember",
	"updatexml", "extractvalue",
	"hex", "char", "chr", "mid", "ord", "ascii", "bin",
}

// Defaults returns a fresh copy of the built-in configuration.
func Defaults() *engine.PolicyConfig {
	blacklist := make(map[string]bool, len(DefaultSQLFunctionBlacklist))
	for _, fn := range DefaultSQLFunctionBlacklist {
		blacklist[fn] = true
	}

	pc := &engine.PolicyConfig{
		Algorithms: map[string]engine.AlgorithmPolicy{
			detectors.AlgSQLiUserInput: {
				Action:    engine.ActionBlock,
				MinLength: intPtr(detectors.DefaultSQLiMinLength),
			},
			// Requires sqli_userinput.
			detectors.AlgSQLiDBManager: {Action: engine.ActionIgnore},
			detectors.AlgSQLiPolicy: {
				Action: engine.ActionBlock,
				Feature: map[string]bool{
					detectors.FeatureStackedQuery:      true,
					detectors.FeatureNoHex:             true,
					detectors.FeatureVersionComment:    true,
					detectors.FeatureFunctionBlacklist: true,
					detectors.FeatureUnionNull:         true,
					// Hand written queries compare constants too often.
					detectors.FeatureConstantCompare: false,
					detectors.FeatureIntoOutfile:     true,
				},
				FunctionBlacklist: blacklist,
			},

			detectors.AlgSSRFUserInput: block(),
			detectors.AlgSSRFAWS:       block(),
			detectors.AlgSSRFCommon: {
				Action:  engine.ActionBlock,
				Domains: append([]string(nil), DefaultDNSLogDomains...),
			},
			detectors.AlgSSRFObfuscate: block(),
			detectors.AlgSSRFProtocol: {
				Action:    engine.ActionBlock,
				Protocols: []string{"file", "dict", "gopher", "php"},
			},

			detectors.AlgReadFileForceful:          logged(),
			detectors.AlgReadFileUserInput:         block(),
			detectors.AlgReadFileUserInputHTTP:     block(),
			detectors.AlgReadFileUserInputUnwanted: block(),
			detectors.AlgReadFileTraversal:         block(),
			detectors.AlgReadFileUnwanted:          block(),

			detectors.AlgWriteFileNTFS:      block(),
			detectors.AlgWriteFilePUTScript: block(),
			detectors.AlgWriteFileScript:    logged(),

			detectors.AlgRenameWebshell: block(),

			detectors.AlgDirectoryReflect:        block(),
			detectors.AlgDirectoryUnwanted:       block(),
			detectors.AlgDirectoryOutsideWebroot: block(),

			detectors.AlgIncludeProtocol: {
				Action:    engine.ActionBlock,
				Protocols: []string{"http", "https", "php", "file"},
			},
			detectors.AlgIncludeOutsideWebroot: block(),

			detectors.AlgXXEProtocol: {
				Action:    engine.ActionBlock,
				Protocols: []string{"ftp", "dict", "gopher"},
			},
			// file:// entities are common in legitimate DTDs.
			detectors.AlgXXEFile: logged(),

			detectors.AlgFileUploadWebDAV:    block(),
			detectors.AlgFileUploadMultipart: block(),

			detectors.AlgOGNLExec: {
				Action:    engine.ActionBlock,
				MinLength: intPtr(detectors.DefaultOGNLMinLength),
			},

			detectors.AlgCommandReflect:   block(),
			detectors.AlgCommandUserInput: block(),
			detectors.AlgCommandOther:     logged(),

			detectors.AlgTransformerDeserialize: block(),
		},
	}
	pc.Cache.SQLi.Capacity = engine.DefaultCacheCapacity
	return pc
}

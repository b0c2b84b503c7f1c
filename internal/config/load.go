package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/triage-ai/palisade-rasp/internal/engine"
)

// Sections of a config document that are not algorithm entries.
const (
	sectionCache      = "cache"
	sectionWhitelist  = "whitelist"
	sectionAlgorithms = "algorithms"
)

// Load reads a YAML or JSON config file. See Parse.
func Load(path string, logger *zap.Logger) (*engine.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	pc, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("config.Load %s: %w", path, err)
	}
	return pc, nil
}

// Parse overlays a config document onto Defaults. Three shapes are
// accepted: the exported form wrapped in "algorithm.config", a document
// with an "algorithms" map, or a flat map where every key other than
// "cache" and "whitelist" names an algorithm. Entries replace the default
// entry of the same name as a whole.
//
// An entry that fails validation is disabled (action ignore) and logged;
// it never aborts the load. Only a document that is not a map is an error.
func Parse(data []byte, logger *zap.Logger) (*engine.PolicyConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return parse(data, logInvalid(logger))
}

// invalidFunc is told about every entry that fails validation. section is
// "algorithm", "cache" or "whitelist"; name is the algorithm name or the
// whitelist index.
type invalidFunc func(section, name string, err error)

func logInvalid(logger *zap.Logger) invalidFunc {
	return func(section, name string, err error) {
		switch section {
		case sectionCache:
			logger.Warn("invalid cache config, keeping default", zap.Error(err))
		case sectionWhitelist:
			logger.Warn("invalid whitelist entry, skipping", zap.String("index", name), zap.Error(err))
		default:
			logger.Warn("invalid algorithm config, disabling algorithm",
				zap.String("algorithm", name),
				zap.Error(err),
			)
		}
	}
}

func parse(data []byte, onInvalid invalidFunc) (*engine.PolicyConfig, error) {
	sch, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if inner, ok := doc[engine.ExportConfigKey].(map[string]any); ok {
		doc = inner
	}

	pc := Defaults()

	entries := doc
	if nested, ok := doc[sectionAlgorithms].(map[string]any); ok {
		entries = nested
	}
	for name, raw := range entries {
		if name == sectionCache || name == sectionWhitelist || name == sectionAlgorithms {
			continue
		}
		var ap engine.AlgorithmPolicy
		if err := validate(sch.algorithm, raw, &ap); err != nil {
			onInvalid("algorithm", name, err)
			pc.Algorithms[name] = engine.AlgorithmPolicy{Action: engine.ActionIgnore}
			continue
		}
		pc.Algorithms[name] = ap
	}

	if raw, ok := doc[sectionCache]; ok {
		var cache engine.CacheConfig
		if err := validate(sch.cache, raw, &cache); err != nil {
			onInvalid(sectionCache, sectionCache, err)
		} else if cache.SQLi.Capacity > 0 {
			pc.Cache = cache
		}
	}

	if raw, ok := doc[sectionWhitelist]; ok {
		pc.Whitelist = parseWhitelist(sch, raw, onInvalid)
	}

	return pc, nil
}

func parseWhitelist(sch schemas, raw any, onInvalid invalidFunc) []engine.WhitelistEntry {
	items, ok := raw.([]any)
	if !ok {
		onInvalid(sectionWhitelist, "", errors.New("whitelist is not a list"))
		return nil
	}
	out := make([]engine.WhitelistEntry, 0, len(items))
	for i, item := range items {
		var e engine.WhitelistEntry
		if err := validate(sch.whitelist, item, &e); err != nil {
			onInvalid(sectionWhitelist, strconv.Itoa(i), err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// ParseStored builds a policy from an app's stored columns: the algorithm
// config document and the whitelist array. Either may be empty.
func ParseStored(algorithmConfig, whitelist []byte, logger *zap.Logger) (*engine.PolicyConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return parseStored(algorithmConfig, whitelist, logInvalid(logger))
}

func parseStored(algorithmConfig, whitelist []byte, onInvalid invalidFunc) (*engine.PolicyConfig, error) {
	pc, err := parse(algorithmConfig, onInvalid)
	if err != nil {
		return nil, err
	}
	if len(whitelist) == 0 {
		return pc, nil
	}

	sch, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(whitelist, &raw); err != nil {
		return nil, fmt.Errorf("decode whitelist: %w", err)
	}
	if raw != nil {
		pc.Whitelist = parseWhitelist(sch, raw, onInvalid)
	}
	return pc, nil
}

// Validate checks stored columns strictly. Every entry that Parse would
// disable or skip is reported, joined into one error.
func Validate(algorithmConfig, whitelist []byte) error {
	var errs []error
	_, err := parseStored(algorithmConfig, whitelist, func(section, name string, err error) {
		errs = append(errs, fmt.Errorf("%s %s: %w", section, name, err))
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

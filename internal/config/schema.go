package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const algorithmEntrySchema = `{
	"type": "object",
	"properties": {
		"action":             {"enum": ["ignore", "log", "block"]},
		"min_length":         {"type": "integer", "minimum": 0},
		"feature":            {"type": "object", "additionalProperties": {"type": "boolean"}},
		"function_blacklist": {"type": "object", "additionalProperties": {"type": "boolean"}},
		"domains":            {"type": "array", "items": {"type": "string"}},
		"protocols":          {"type": "array", "items": {"type": "string"}}
	},
	"required": ["action"],
	"additionalProperties": false
}`

const cacheSchema = `{
	"type": "object",
	"properties": {
		"sqli": {
			"type": "object",
			"properties": {"capacity": {"type": "integer", "minimum": 1}},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`

const whitelistEntrySchema = `{
	"type": "object",
	"properties": {
		"url":  {"type": "string", "minLength": 1},
		"hook": {"type": "object", "additionalProperties": {"type": "boolean"}}
	},
	"required": ["url", "hook"],
	"additionalProperties": false
}`

type schemas struct {
	algorithm *jsonschema.Schema
	cache     *jsonschema.Schema
	whitelist *jsonschema.Schema
}

var (
	compiledOnce sync.Once
	compiled     schemas
	compileErr   error
)

func loadSchemas() (schemas, error) {
	compiledOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for name, src := range map[string]string{
			"algorithm.json": algorithmEntrySchema,
			"cache.json":     cacheSchema,
			"whitelist.json": whitelistEntrySchema,
		} {
			var obj any
			if err := json.Unmarshal([]byte(src), &obj); err != nil {
				compileErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(name, obj); err != nil {
				compileErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
		}
		var err error
		if compiled.algorithm, err = c.Compile("algorithm.json"); err != nil {
			compileErr = err
			return
		}
		if compiled.cache, err = c.Compile("cache.json"); err != nil {
			compileErr = err
			return
		}
		if compiled.whitelist, err = c.Compile("whitelist.json"); err != nil {
			compileErr = err
		}
	})
	return compiled, compileErr
}

// validate checks a decoded YAML/JSON value against a schema and decodes
// it into out.
func validate(sch *jsonschema.Schema, raw any, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("not representable as JSON: %w", err)
	}
	var inst any
	if err := json.Unmarshal(b, &inst); err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

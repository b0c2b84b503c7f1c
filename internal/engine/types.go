package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Action is the enforcement decision attached to an algorithm and to a verdict.
type Action int

const (
	ActionIgnore Action = iota
	ActionLog
	ActionBlock
)

// String returns the lowercase action name used in config files and responses.
func (a Action) String() string {
	switch a {
	case ActionLog:
		return "log"
	case ActionBlock:
		return "block"
	default:
		return "ignore"
	}
}

// ParseAction converts a config string into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore", "":
		return ActionIgnore, nil
	case "log":
		return ActionLog, nil
	case "block":
		return ActionBlock, nil
	}
	return ActionIgnore, fmt.Errorf("unknown action %q (valid: ignore, log, block)", s)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Verdict is the outcome of one detector invocation.
type Verdict struct {
	Action     Action `json:"action"`
	Message    string `json:"message"`
	Confidence int    `json:"confidence"` // 0-100
}

// cleanMessage is the neutral message carried by every clean verdict.
const cleanMessage = "Looks fine to me"

// Clean returns the canonical "nothing found" verdict.
func Clean() Verdict {
	return Verdict{Action: ActionIgnore, Message: cleanMessage, Confidence: 0}
}

// IsClean reports whether the verdict lets the operation through silently.
func (v Verdict) IsClean() bool {
	return v.Action == ActionIgnore
}

// RuntimeProfile identifies the host runtime. It selects which stack
// analysis strategy and gadget table a detector applies.
type RuntimeProfile int

const (
	RuntimeUnknown RuntimeProfile = iota
	RuntimePHP
	RuntimeJava
)

// String returns the lowercase runtime name.
func (r RuntimeProfile) String() string {
	switch r {
	case RuntimePHP:
		return "php"
	case RuntimeJava:
		return "java"
	default:
		return "unknown"
	}
}

// ParseRuntime maps a host-reported language name to a RuntimeProfile.
func ParseRuntime(s string) RuntimeProfile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "php":
		return RuntimePHP
	case "java":
		return RuntimeJava
	default:
		return RuntimeUnknown
	}
}

func (r RuntimeProfile) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RuntimeProfile) UnmarshalText(b []byte) error {
	*r = ParseRuntime(string(b))
	return nil
}

// ServerInfo describes the process the host agent runs in.
type ServerInfo struct {
	Runtime RuntimeProfile `json:"language"`
	OS      string         `json:"os"` // "Windows", "Linux", ...
	Version string         `json:"version,omitempty"`
}

// Parameter holds the values submitted under one request parameter name.
// Most parameters are a list of scalar strings. PHP style names such as
// filter[category_id]=1 arrive as a nested map instead.
type Parameter struct {
	Values []string
	Fields map[string]string
}

// First returns the first scalar value, if the parameter is scalar.
func (p Parameter) First() (string, bool) {
	if len(p.Values) == 0 {
		return "", false
	}
	return p.Values[0], true
}

// ValueList returns every value of the parameter. Nested fields are
// returned in key order so that callers stay deterministic.
func (p Parameter) ValueList() []string {
	if len(p.Values) > 0 || len(p.Fields) == 0 {
		return p.Values
	}
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.Fields[k])
	}
	return out
}

// UnmarshalJSON accepts ["a", "b"], [{"k": "v"}], {"k": "v"} and "a".
func (p *Parameter) UnmarshalJSON(b []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err != nil {
		var single string
		if err := json.Unmarshal(b, &single); err == nil {
			p.Values = []string{single}
			return nil
		}
		var fields map[string]string
		if err := json.Unmarshal(b, &fields); err != nil {
			return fmt.Errorf("parameter: unsupported shape: %w", err)
		}
		p.Fields = fields
		return nil
	}
	for _, raw := range list {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			p.Values = append(p.Values, s)
			continue
		}
		var fields map[string]string
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("parameter: unsupported element: %w", err)
		}
		if len(p.Values) == 0 && p.Fields == nil {
			p.Fields = fields
		}
	}
	return nil
}

func (p Parameter) MarshalJSON() ([]byte, error) {
	if len(p.Values) == 0 && len(p.Fields) > 0 {
		return json.Marshal([]map[string]string{p.Fields})
	}
	if p.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Values)
}

// OperationContext is the read-only request snapshot supplied by the host.
type OperationContext struct {
	Parameters  map[string]Parameter `json:"parameter"`
	AppBasePath string               `json:"appBasePath"`
	Method      string               `json:"method"` // lowercase HTTP method
	URL         string               `json:"url"`    // empty when not triggered by an HTTP request
	Server      ServerInfo           `json:"server"`
}

// ParameterNames returns the parameter names in sorted order.
func (oc *OperationContext) ParameterNames() []string {
	if oc == nil {
		return nil
	}
	names := make([]string, 0, len(oc.Parameters))
	for name := range oc.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Params is the hook-specific payload. Each hook reads only its own fields:
//
//	sql              Query, Dialect
//	ssrf             Hostname, URL, IP
//	directory        Path, RealPath, Stack
//	readFile         Path, RealPath
//	include          URL, RealPath, Function
//	writeFile        RealPath
//	fileUpload       Filename
//	webdav, rename   Source, Dest
//	command          Command, Stack
//	xxe              Entity
//	ognl             Expression
//	deserialization  Clazz
type Params struct {
	Query      string   `json:"query,omitempty"`
	Dialect    string   `json:"server,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	URL        string   `json:"url,omitempty"`
	IP         []string `json:"ip,omitempty"`
	Path       string   `json:"path,omitempty"`
	RealPath   string   `json:"realpath,omitempty"`
	Function   string   `json:"function,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	Source     string   `json:"source,omitempty"`
	Dest       string   `json:"dest,omitempty"`
	Command    string   `json:"command,omitempty"`
	Stack      []string `json:"stack,omitempty"`
	Entity     string   `json:"entity,omitempty"`
	Expression string   `json:"expression,omitempty"`
	Clazz      string   `json:"clazz,omitempty"`
}

// Hook names, one per operation category.
const (
	HookSQL             = "sql"
	HookSSRF            = "ssrf"
	HookDirectory       = "directory"
	HookReadFile        = "readFile"
	HookInclude         = "include"
	HookWriteFile       = "writeFile"
	HookFileUpload      = "fileUpload"
	HookWebDAV          = "webdav"
	HookRename          = "rename"
	HookCommand         = "command"
	HookXXE             = "xxe"
	HookOGNL            = "ognl"
	HookDeserialization = "deserialization"
)

// AllHooks lists every hook in registration order.
var AllHooks = []string{
	HookSQL, HookSSRF, HookDirectory, HookReadFile, HookInclude, HookWriteFile,
	HookFileUpload, HookWebDAV, HookRename, HookCommand, HookXXE, HookOGNL, HookDeserialization,
}

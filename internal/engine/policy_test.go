package engine

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func intPtr(i int) *int { return &i }

func TestPolicyConfig_NilReturnsIgnore(t *testing.T) {
	var pc *PolicyConfig
	if got := pc.Action("sqli_policy"); got != ActionIgnore {
		t.Errorf("nil PolicyConfig should return ignore, got %s", got)
	}
	if pc.Enabled("sqli_policy") {
		t.Error("nil PolicyConfig should report algorithms disabled")
	}
	if got := pc.SQLiCacheCapacity(); got != DefaultCacheCapacity {
		t.Errorf("nil PolicyConfig capacity: expected %d, got %d", DefaultCacheCapacity, got)
	}
}

func TestPolicyConfig_MissingAlgorithmIsIgnore(t *testing.T) {
	pc := &PolicyConfig{
		Algorithms: map[string]AlgorithmPolicy{
			"ssrf_aws": {Action: ActionBlock},
		},
	}
	if pc.Enabled("ssrf_common") {
		t.Error("missing algorithm should be disabled")
	}
	if !pc.Enabled("ssrf_aws") {
		t.Error("ssrf_aws should be enabled")
	}
}

func TestAlgorithmPolicy_EffectiveMinLength(t *testing.T) {
	if got := (AlgorithmPolicy{}).EffectiveMinLength(15); got != 15 {
		t.Errorf("nil MinLength should return default 15, got %d", got)
	}
	if got := (AlgorithmPolicy{MinLength: intPtr(0)}).EffectiveMinLength(15); got != 0 {
		t.Errorf("explicit 0 should win over default, got %d", got)
	}
	pc := &PolicyConfig{Algorithms: map[string]AlgorithmPolicy{"ognl_exec": {MinLength: intPtr(42)}}}
	if got := pc.MinLength("ognl_exec", 30); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestPolicyConfig_FeatureEnabled(t *testing.T) {
	pc := &PolicyConfig{
		Algorithms: map[string]AlgorithmPolicy{
			"sqli_policy": {
				Action:  ActionBlock,
				Feature: map[string]bool{"stacked_query": true, "constant_compare": false},
			},
		},
	}
	if !pc.FeatureEnabled("sqli_policy", "stacked_query") {
		t.Error("stacked_query should be on")
	}
	if pc.FeatureEnabled("sqli_policy", "constant_compare") {
		t.Error("constant_compare should be off")
	}
	if pc.FeatureEnabled("sqli_policy", "no_hex") {
		t.Error("missing feature should be off")
	}
}

func TestPolicyConfig_JSONAndYAML(t *testing.T) {
	jsonDoc := `{
		"cache": {"sqli": {"capacity": 7}},
		"algorithms": {
			"sqli_userinput": {"action": "block", "min_length": 20},
			"ssrf_protocol": {"action": "log", "protocols": ["file", "gopher"]}
		}
	}`
	yamlDoc := `
cache:
  sqli:
    capacity: 7
algorithms:
  sqli_userinput:
    action: block
    min_length: 20
  ssrf_protocol:
    action: log
    protocols: [file, gopher]
`
	var fromJSON, fromYAML PolicyConfig
	if err := json.Unmarshal([]byte(jsonDoc), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	if err := yaml.Unmarshal([]byte(yamlDoc), &fromYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}

	for name, pc := range map[string]*PolicyConfig{"json": &fromJSON, "yaml": &fromYAML} {
		t.Run(name, func(t *testing.T) {
			if got := pc.SQLiCacheCapacity(); got != 7 {
				t.Errorf("capacity: expected 7, got %d", got)
			}
			if got := pc.MinLength("sqli_userinput", 15); got != 20 {
				t.Errorf("min_length: expected 20, got %d", got)
			}
			sp := pc.Algorithm("ssrf_protocol")
			if sp.Action != ActionLog {
				t.Errorf("ssrf_protocol action: expected log, got %s", sp.Action)
			}
			if !sp.HasProtocol("gopher") || sp.HasProtocol("dict") {
				t.Errorf("unexpected protocols %v", sp.Protocols)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"block", ActionBlock, false},
		{" LOG ", ActionLog, false},
		{"ignore", ActionIgnore, false},
		{"", ActionIgnore, false},
		{"deny", ActionIgnore, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParameter_UnmarshalShapes(t *testing.T) {
	var oc OperationContext
	doc := `{
		"parameter": {
			"id": ["1", "2"],
			"filter": [{"category_id": "5", "brand": "x"}],
			"name": "bob"
		},
		"server": {"language": "php", "os": "Linux"}
	}`
	if err := json.Unmarshal([]byte(doc), &oc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := oc.Parameters["id"].ValueList(); len(got) != 2 || got[1] != "2" {
		t.Errorf("id: unexpected %v", got)
	}
	if got := oc.Parameters["filter"].ValueList(); len(got) != 2 || got[0] != "x" || got[1] != "5" {
		t.Errorf("filter: expected values in key order, got %v", got)
	}
	if v, ok := oc.Parameters["name"].First(); !ok || v != "bob" {
		t.Errorf("name: expected bob, got %q", v)
	}
	if _, ok := oc.Parameters["filter"].First(); ok {
		t.Error("nested parameter should have no first scalar value")
	}
	if oc.Server.Runtime != RuntimePHP {
		t.Errorf("runtime: expected php, got %s", oc.Server.Runtime)
	}
	if names := oc.ParameterNames(); len(names) != 3 || names[0] != "filter" {
		t.Errorf("names should be sorted, got %v", names)
	}
}

package engine

// PolicyConfig is the per-app algorithm configuration.
// It is loaded once at startup and never mutated afterwards.
type PolicyConfig struct {
	Cache      CacheConfig                `json:"cache" yaml:"cache"`
	Algorithms map[string]AlgorithmPolicy `json:"algorithms" yaml:"algorithms"`
	Whitelist  []WhitelistEntry           `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
}

// CacheConfig sizes the verdict caches.
type CacheConfig struct {
	SQLi struct {
		Capacity int `json:"capacity" yaml:"capacity"`
	} `json:"sqli" yaml:"sqli"`
}

// WhitelistEntry disables hooks for requests whose URL matches Pattern.
// Hooks maps a hook name (or "all") to true.
type WhitelistEntry struct {
	URL   string          `json:"url" yaml:"url"`
	Hooks map[string]bool `json:"hook" yaml:"hook"`
}

// AlgorithmPolicy controls one detection algorithm.
// Fields that an algorithm does not use are left empty.
type AlgorithmPolicy struct {
	Action            Action          `json:"action" yaml:"action"`
	MinLength         *int            `json:"min_length,omitempty" yaml:"min_length,omitempty"` // nil = algorithm default
	Feature           map[string]bool `json:"feature,omitempty" yaml:"feature,omitempty"`
	FunctionBlacklist map[string]bool `json:"function_blacklist,omitempty" yaml:"function_blacklist,omitempty"`
	Domains           []string        `json:"domains,omitempty" yaml:"domains,omitempty"`
	Protocols         []string        `json:"protocols,omitempty" yaml:"protocols,omitempty"`
}

// Algorithm returns the policy for an algorithm by name.
// If the PolicyConfig is nil or the algorithm is missing, returns
// a zero-value AlgorithmPolicy, whose action is Ignore.
func (pc *PolicyConfig) Algorithm(name string) AlgorithmPolicy {
	if pc == nil || pc.Algorithms == nil {
		return AlgorithmPolicy{}
	}
	return pc.Algorithms[name]
}

// Action returns the configured action for an algorithm.
func (pc *PolicyConfig) Action(name string) Action {
	return pc.Algorithm(name).Action
}

// Enabled reports whether the algorithm does anything at all.
func (pc *PolicyConfig) Enabled(name string) bool {
	return pc.Action(name) != ActionIgnore
}

// FeatureEnabled reports whether a feature flag of an algorithm is on.
// Missing flags are off.
func (pc *PolicyConfig) FeatureEnabled(name, feature string) bool {
	return pc.Algorithm(name).Feature[feature]
}

// MinLength returns the min_length of an algorithm, or def when unset.
func (pc *PolicyConfig) MinLength(name string, def int) int {
	return pc.Algorithm(name).EffectiveMinLength(def)
}

// EffectiveMinLength returns the min_length of an algorithm.
// A nil MinLength falls back to the provided default.
func (ap AlgorithmPolicy) EffectiveMinLength(def int) int {
	if ap.MinLength == nil {
		return def
	}
	return *ap.MinLength
}

// HasProtocol reports whether proto is in the algorithm's protocol list.
func (ap AlgorithmPolicy) HasProtocol(proto string) bool {
	for _, p := range ap.Protocols {
		if p == proto {
			return true
		}
	}
	return false
}

// SQLiCacheCapacity returns the configured LRU size, defaulting to 100.
func (pc *PolicyConfig) SQLiCacheCapacity() int {
	if pc == nil || pc.Cache.SQLi.Capacity <= 0 {
		return DefaultCacheCapacity
	}
	return pc.Cache.SQLi.Capacity
}

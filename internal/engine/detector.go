package engine

// Detector is the interface every hook detector must implement.
// Implementations are immutable after construction and safe for
// concurrent use. Check never blocks and never fails: malformed input
// degrades to skipping the affected sub-check.
type Detector interface {
	// Name returns the hook the detector serves (e.g., "sql").
	Name() string

	// Check evaluates one intercepted operation and returns exactly one verdict.
	Check(p *Params, oc *OperationContext) Verdict
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc struct {
	Hook string
	Fn   func(p *Params, oc *OperationContext) Verdict
}

func (d DetectorFunc) Name() string { return d.Hook }

func (d DetectorFunc) Check(p *Params, oc *OperationContext) Verdict {
	return d.Fn(p, oc)
}

// Finding is what a rule reports when its predicate matches.
type Finding struct {
	Message    string
	Confidence int
	// Action overrides the owning algorithm's action when non-zero.
	Action Action
}

// Rule pairs an algorithm name with a predicate. The predicate is only
// evaluated when the algorithm (and Requires, if set) is not Ignore.
type Rule struct {
	Algorithm string
	Requires  string
	Match     func() (Finding, bool)
}

// FirstMatch evaluates rules in order and returns the verdict of the
// first rule that matches. Rules whose algorithm is Ignore are skipped
// without running their predicate. Returns Clean when nothing matches.
func FirstMatch(pc *PolicyConfig, rules ...Rule) Verdict {
	for _, r := range rules {
		action := pc.Action(r.Algorithm)
		if action == ActionIgnore {
			continue
		}
		if r.Requires != "" && !pc.Enabled(r.Requires) {
			continue
		}
		f, ok := r.Match()
		if !ok {
			continue
		}
		if f.Action != ActionIgnore {
			action = f.Action
		}
		return Verdict{Action: action, Message: f.Message, Confidence: f.Confidence}
	}
	return Clean()
}

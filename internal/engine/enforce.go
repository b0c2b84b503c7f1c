package engine

import (
	"fmt"
	"strings"
)

// EnforceMode decides how a host applies Block verdicts.
type EnforceMode int

const (
	// EnforceBlock returns verdicts unchanged.
	EnforceBlock EnforceMode = iota
	// EnforceShadow records the real verdict but never blocks.
	EnforceShadow
)

func (m EnforceMode) String() string {
	if m == EnforceShadow {
		return "shadow"
	}
	return "enforce"
}

// ParseEnforceMode converts RASP_ENFORCE_MODE style strings.
func ParseEnforceMode(s string) (EnforceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "enforce", "block":
		return EnforceBlock, nil
	case "shadow":
		return EnforceShadow, nil
	}
	return EnforceBlock, fmt.Errorf("unknown enforce mode %q (valid: enforce, shadow)", s)
}

// Decision is what the host is told to do, alongside the verdict the
// detector actually produced.
type Decision struct {
	Verdict  Verdict // returned to the host
	Real     Verdict // produced by the detector
	IsShadow bool    // true when a Block was downgraded
}

// Enforce applies the enforce mode to a verdict.
//
// Rules:
//  1. EnforceBlock → verdict unchanged
//  2. EnforceShadow and verdict is Block → returned as Log, IsShadow set
//  3. Otherwise → verdict unchanged
func Enforce(v Verdict, mode EnforceMode) Decision {
	d := Decision{Verdict: v, Real: v}
	if mode == EnforceShadow && v.Action == ActionBlock {
		d.Verdict.Action = ActionLog
		d.IsShadow = true
	}
	return d
}

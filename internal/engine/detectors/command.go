package detectors

import (
	"fmt"
	"strings"

	"github.com/triage-ai/palisade-rasp/internal/engine"
	"github.com/triage-ai/palisade-rasp/internal/lexical"
)

// CommandDetector inspects process execution. Stack evidence is checked
// for every execution; request-derived checks only apply when the command
// runs while serving an HTTP request.
type CommandDetector struct {
	policy *engine.PolicyConfig
	tok    engine.CommandTokenizer
}

func NewCommandDetector(policy *engine.PolicyConfig, tok engine.CommandTokenizer) *CommandDetector {
	return &CommandDetector{policy: policy, tok: tok}
}

func (d *CommandDetector) Name() string { return engine.HookCommand }

func (d *CommandDetector) Check(p *engine.Params, oc *engine.OperationContext) engine.Verdict {
	v := engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgCommandReflect, Match: func() (engine.Finding, bool) {
			inspect, ok := reflectedCommandInspectors[oc.Server.Runtime]
			if !ok || len(p.Stack) == 0 {
				return engine.Finding{}, false
			}
			msg, hit := inspect(p.Stack)
			if !hit {
				return engine.Finding{}, false
			}
			return found100(msg)
		}},
	)
	if !v.IsClean() {
		return v
	}

	// Commands run by cron jobs, workers and startup code are not attacks
	// unless the stack says so.
	if oc.URL == "" {
		return engine.Clean()
	}

	cmd := p.Command
	return engine.FirstMatch(d.policy,
		engine.Rule{Algorithm: AlgCommandUserInput, Match: func() (engine.Finding, bool) {
			if !lexical.IsFromUserInput(oc.Parameters, cmd) {
				return engine.Finding{}, false
			}
			return found100(fmt.Sprintf("WebShell detected - Executing command: %s", cmd))
		}},
		engine.Rule{Algorithm: AlgCommandUserInput, Match: func() (engine.Finding, bool) {
			return d.matchUserInput(cmd, oc)
		}},
		engine.Rule{Algorithm: AlgCommandOther, Match: func() (engine.Finding, bool) {
			return found90(fmt.Sprintf("Command execution - Logging all command execution by default, command is %s", cmd))
		}},
	)
}

// matchUserInput reports the first parameter whose removal from the
// command changes its token structure.
func (d *CommandDetector) matchUserInput(cmd string, oc *engine.OperationContext) (engine.Finding, bool) {
	var (
		tokens    []string
		tokenized bool
	)
	for _, name := range oc.ParameterNames() {
		for _, value := range oc.Parameters[name].ValueList() {
			if value == "" || !strings.Contains(cmd, value) {
				continue
			}
			if !tokenized {
				tokens = d.tok.TokenizeCommand(cmd)
				tokenized = true
			}
			if engine.CommandStructureAltered(d.tok, cmd, tokens, value) == engine.DiffAltered {
				return found100(fmt.Sprintf("Command execution - Command structure altered by user input, request parameter name: %s", name))
			}
		}
	}
	return engine.Finding{}, false
}

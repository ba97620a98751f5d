// Package matcher compiles a types.GroupMatcher into a reusable predicate.
// PauseJobs/PauseTriggers (spec §4.4.6) and the JobKeys/TriggerKeys
// enumeration (spec §4.4.8) each evaluate one matcher against every group
// name in a set, so compiling once and running many times pays for itself
// the same way the teacher's parser.compiledExpr wraps a single vm.Program
// reused across every recipient row (parser/expr.go).
package matcher

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// Matcher evaluates a compiled group-name predicate.
type Matcher struct {
	program *vm.Program // nil for MatchAny, which never needs evaluation
}

type env struct {
	Group string
}

// Compile builds a Matcher from a types.GroupMatcher.
func Compile(gm types.GroupMatcher) (*Matcher, error) {
	if gm.Operator == types.MatchAny {
		return &Matcher{}, nil
	}

	var src string
	switch gm.Operator {
	case types.MatchEquals:
		src = fmt.Sprintf("Group == %q", gm.Value)
	case types.MatchStartsWith:
		src = fmt.Sprintf("Group startsWith %q", gm.Value)
	case types.MatchEndsWith:
		src = fmt.Sprintf("Group endsWith %q", gm.Value)
	case types.MatchContains:
		src = fmt.Sprintf("Group contains %q", gm.Value)
	default:
		return nil, fmt.Errorf("matcher: unknown operator %q", gm.Operator)
	}

	program, err := expr.Compile(src, expr.Env(env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("matcher: compile %q: %w", src, err)
	}
	return &Matcher{program: program}, nil
}

// Matches reports whether group satisfies the compiled predicate.
func (m *Matcher) Matches(group string) bool {
	if m == nil || m.program == nil {
		return true
	}
	out, err := expr.Run(m.program, env{Group: group})
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}

// Filter returns the subset of groups the matcher accepts.
func (m *Matcher) Filter(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if m.Matches(g) {
			out = append(out, g)
		}
	}
	return out
}

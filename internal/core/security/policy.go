// Package security provides authorization and access control.
package security

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// BranchPolicy decides whether an actor may operate on a branch.
// The rule is a CEL expression so deployments can tighten or relax access
// without code changes (e.g. allow managers cross-branch reads).
//
// Available variables:
//
//	actor_role   string  - role of the current actor
//	actor_branch string  - actor's home branch ID, "" if unbound
//	branch       string  - target branch ID
type BranchPolicy struct {
	program cel.Program
	expr    string
}

// DefaultBranchRule grants owners everything and everyone else their own branch.
const DefaultBranchRule = `actor_role == "owner" || actor_branch == "" || actor_branch == branch`

// NewBranchPolicy compiles a CEL branch-access rule.
func NewBranchPolicy(expr string) (*BranchPolicy, error) {
	if expr == "" {
		expr = DefaultBranchRule
	}

	env, err := cel.NewEnv(
		cel.Variable("actor_role", cel.StringType),
		cel.Variable("actor_branch", cel.StringType),
		cel.Variable("branch", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile branch rule: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("branch rule must evaluate to bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build branch rule program: %w", err)
	}

	return &BranchPolicy{program: program, expr: expr}, nil
}

// MustBranchPolicy compiles a rule, panics on error. Use for constants and tests.
func MustBranchPolicy(expr string) *BranchPolicy {
	p, err := NewBranchPolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Allows evaluates the rule for one actor/branch pair.
// Evaluation errors deny access.
func (p *BranchPolicy) Allows(actorRole, actorBranch, branch string) bool {
	out, _, err := p.program.Eval(map[string]any{
		"actor_role":   actorRole,
		"actor_branch": actorBranch,
		"branch":       branch,
	})
	if err != nil {
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}

// Rule returns the source expression (for logging and diagnostics).
func (p *BranchPolicy) Rule() string {
	return p.expr
}

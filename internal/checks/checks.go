// Package checks runs the startup invariant checker: a fixed registry of
// independent, side-effect-free checks against live configuration. The
// registry gathers every finding before anyone decides what blocks; callers
// print the aggregate and map it to an exit.
package checks

import (
	"context"

	"golang.org/x/sync/errgroup"

	"custodia/internal/platform/config"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one detected invariant violation. Findings are ephemeral; they
// are never persisted.
type Finding struct {
	CheckID  string
	Severity Severity
	Message  string
	Hint     string
}

// Check is one startup invariant. Run must be a pure function of the
// configuration: no mutation, no ordering dependence, and a missing config
// key is "not configured", never an internal error.
type Check interface {
	ID() string
	// DeployOnly marks checks whose findings matter only when validating a
	// deployment; they never block normal startup.
	DeployOnly() bool
	Run(ctx context.Context, cfg config.Config) []Finding
}

// Defaults returns the fixed production check set.
func Defaults() []Check {
	return []Check{
		EncryptionKey{},
		Middleware{},
		Debug{},
		SecureCookies{},
		PasswordHashers{},
	}
}

// Registry executes a set of checks.
type Registry struct {
	checks []Check
}

// NewRegistry builds a registry; with no arguments it carries the default
// check set.
func NewRegistry(checks ...Check) *Registry {
	if len(checks) == 0 {
		checks = Defaults()
	}
	return &Registry{checks: checks}
}

// Run executes every check concurrently and gathers all findings, in
// registry order.
func (r *Registry) Run(ctx context.Context, cfg config.Config) Result {
	results := make([][]Finding, len(r.checks))
	g, ctx := errgroup.WithContext(ctx)
	for i, check := range r.checks {
		g.Go(func() error {
			results[i] = check.Run(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait() // checks never error; findings carry the outcome

	result := Result{deployOnly: make(map[string]bool, len(r.checks))}
	for i, check := range r.checks {
		result.deployOnly[check.ID()] = check.DeployOnly()
		result.Findings = append(result.Findings, results[i]...)
	}
	return result
}

// Result is the aggregate outcome of one checker run.
type Result struct {
	Findings []Finding

	deployOnly map[string]bool
}

// Blocking returns the findings that should prevent startup. In deploy
// validation every finding blocks; at normal startup only error findings
// from always-on checks do.
func (r Result) Blocking(deploy bool) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if deploy {
			out = append(out, f)
			continue
		}
		if f.Severity == SeverityError && !r.deployOnly[f.CheckID] {
			out = append(out, f)
		}
	}
	return out
}

// OK reports whether startup may proceed in the given mode.
func (r Result) OK(deploy bool) bool {
	return len(r.Blocking(deploy)) == 0
}

package checks

import (
	"context"

	"custodia/internal/platform/config"
)

// Debug warns when debug mode is enabled; relevant only when validating a
// deployment.
type Debug struct{}

func (Debug) ID() string       { return "deploy.debug" }
func (Debug) DeployOnly() bool { return true }

func (c Debug) Run(_ context.Context, cfg config.Config) []Finding {
	if !cfg.Debug {
		return nil
	}
	return []Finding{{
		CheckID:  c.ID(),
		Severity: SeverityWarning,
		Message:  "debug mode is enabled",
		Hint:     "unset CUSTODIA_DEBUG before deploying",
	}}
}

// SecureCookies warns, once per cookie, when a sensitive cookie is not
// marked transport-secure.
type SecureCookies struct{}

func (SecureCookies) ID() string       { return "deploy.secure-cookies" }
func (SecureCookies) DeployOnly() bool { return true }

func (c SecureCookies) Run(_ context.Context, cfg config.Config) []Finding {
	var findings []Finding
	if !cfg.Security.SessionCookieSecure {
		findings = append(findings, Finding{
			CheckID:  c.ID(),
			Severity: SeverityWarning,
			Message:  "session cookie is not marked transport-secure",
			Hint:     "set CUSTODIA_SECURITY_SESSION_COOKIE_SECURE=true",
		})
	}
	if !cfg.Security.CSRFCookieSecure {
		findings = append(findings, Finding{
			CheckID:  c.ID(),
			Severity: SeverityWarning,
			Message:  "CSRF cookie is not marked transport-secure",
			Hint:     "set CUSTODIA_SECURITY_CSRF_COOKIE_SECURE=true",
		})
	}
	return findings
}

package workflow

import (
	"context"

	"classcoach/internal/logging"
	"classcoach/internal/preflight"
)

// runPreflightChecks records directory and API readiness at startup. Failures
// are reported, not fatal: a stage whose dependency is down fails its records
// with a descriptive reason instead.
func (m *Manager) runPreflightChecks(ctx context.Context) {
	results := preflight.RunAll(ctx, m.cfg)
	for _, r := range results {
		if r.Passed {
			m.logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.WarnWithContext(m.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			logging.String(logging.FieldImpact, "analyses depending on this check will fail"),
		)
	}
	m.mu.Lock()
	m.preflight = results
	m.mu.Unlock()
}

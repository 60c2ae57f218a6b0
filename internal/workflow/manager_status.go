package workflow

import (
	"context"

	"classcoach/internal/analysis"
	"classcoach/internal/logging"
	"classcoach/internal/preflight"
	"classcoach/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	InFlight    int
	LastError   string
	LastItem    *analysis.AudioAnalysis
	QueueStats  map[analysis.Status]int
	StageHealth map[string]stage.Health
	Preflight   []preflight.Result
	LastSweep   SweepResult
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		InFlight:  len(m.inFlight),
		Preflight: append([]preflight.Result(nil), m.preflight...),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		copy := *m.lastItem
		summary.LastItem = &copy
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read analysis stats", logging.Error(err))
	}
	summary.QueueStats = stats

	runners := m.orchestrator.Runners()
	summary.StageHealth = make(map[string]stage.Health, len(runners))
	for _, runner := range runners {
		summary.StageHealth[runner.Name()] = runner.HealthCheck(ctx)
	}
	summary.LastSweep = m.watchdog.LastSweep()
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *analysis.AudioAnalysis) {
	m.mu.Lock()
	if item != nil {
		copy := *item
		m.lastItem = &copy
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}

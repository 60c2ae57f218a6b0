package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/notifications"
	"classcoach/internal/preflight"
)

const submitBuffer = 64

// Manager coordinates background processing of uploaded analyses.
type Manager struct {
	cfg          *config.Config
	store        *analysis.Store
	logger       *slog.Logger
	orchestrator *Orchestrator
	watchdog     *Watchdog

	pollInterval  time.Duration
	retryInterval time.Duration
	maxConcurrent int

	submit chan int64

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inFlight  map[int64]struct{}
	lastErr   error
	lastItem  *analysis.AudioAnalysis
	preflight []preflight.Result
}

// NewManager constructs a workflow manager with the default ntfy notifier.
func NewManager(cfg *config.Config, store *analysis.Store, stages StageSet, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, stages, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *analysis.Store, stages StageSet, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	maxConcurrent := cfg.Workflow.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logging.NewComponentLogger(logger, "workflow-manager"),
		orchestrator:  NewOrchestrator(cfg, store, stages, notifier, logger),
		watchdog:      NewWatchdog(store, notifier, logger, cfg.StallTimeout(), cfg.WatchdogInterval()),
		pollInterval:  cfg.PollInterval(),
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryIntervalSeconds) * time.Second,
		maxConcurrent: maxConcurrent,
		submit:        make(chan int64, submitBuffer),
		inFlight:      make(map[int64]struct{}),
	}
}

// Orchestrator returns the single-record driver used by the manager.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// Submit asks the manager to start id without waiting for the next poll. It
// never blocks; a trigger dropped here is picked up by polling instead.
func (m *Manager) Submit(id int64) bool {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return false
	}
	select {
	case m.submit <- id:
		return true
	default:
		m.logger.Debug("submit queue full; relying on poll", logging.Int64(logging.FieldAnalysisID, id))
		return false
	}
}

func (m *Manager) claimInFlight(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inFlight[id]; ok {
		return false
	}
	m.inFlight[id] = struct{}{}
	return true
}

func (m *Manager) releaseInFlight(id int64) {
	m.mu.Lock()
	delete(m.inFlight, id)
	m.mu.Unlock()
}

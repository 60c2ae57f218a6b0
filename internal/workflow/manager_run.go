package workflow

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"classcoach/internal/analysis"
	"classcoach/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	m.runPreflightChecks(runCtx)

	go m.runDispatcher(runCtx)
	go func() {
		defer m.wg.Done()
		m.watchdog.Run(runCtx)
	}()

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("max_concurrent", m.maxConcurrent),
		logging.Duration("poll_interval", m.pollInterval),
	)
	return nil
}

// Stop cancels in-flight runs and waits for them to return. Records keep
// their last persisted status.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runDispatcher(ctx context.Context) {
	defer m.wg.Done()

	var group errgroup.Group
	group.SetLimit(m.maxConcurrent)
	defer func() { _ = group.Wait() }()

	interval := m.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pauseUntil time.Time
	poll := func() {
		if time.Now().Before(pauseUntil) {
			return
		}
		if err := m.pollUploaded(ctx, &group); err != nil && ctx.Err() == nil {
			pauseUntil = time.Now().Add(m.retryInterval)
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.submit:
			m.dispatch(ctx, &group, id)
		case <-ticker.C:
			poll()
		}
	}
}

func (m *Manager) pollUploaded(ctx context.Context, group *errgroup.Group) error {
	records, err := m.store.ListUploaded(ctx, m.maxConcurrent*2)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "failed to list uploaded analyses", "queue_fetch_failed",
			logging.Error(err),
			logging.Alert("storage_failure"),
			logging.String(logging.FieldErrorHint, "check analysis database access"),
		)
		return err
	}
	for _, rec := range records {
		m.dispatch(ctx, group, rec.ID)
	}
	return nil
}

// dispatch starts a driver for id unless one is already running or every
// slot is busy.
func (m *Manager) dispatch(ctx context.Context, group *errgroup.Group, id int64) {
	if ctx.Err() != nil || !m.claimInFlight(id) {
		return
	}
	started := group.TryGo(func() error {
		defer m.releaseInFlight(id)
		m.process(ctx, id)
		return nil
	})
	if !started {
		m.releaseInFlight(id)
		m.logger.Debug("all workers busy; deferring analysis", logging.Int64(logging.FieldAnalysisID, id))
	}
}

func (m *Manager) process(ctx context.Context, id int64) {
	rec, err := m.orchestrator.drive(ctx, id)
	if rec != nil {
		m.setLastItem(rec)
	}
	if err == nil || ctx.Err() != nil {
		return
	}
	if errors.Is(err, analysis.ErrNotFound) {
		m.logger.Warn("submitted analysis does not exist",
			logging.Int64(logging.FieldAnalysisID, id),
			logging.String(logging.FieldEventType, "analysis_missing"),
			logging.String(logging.FieldErrorHint, "the record was removed before processing"),
			logging.String(logging.FieldImpact, "trigger ignored"),
		)
		return
	}
	m.setLastError(err)
}

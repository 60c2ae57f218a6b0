package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"classcoach/internal/analysis"
	"classcoach/internal/logging"
	"classcoach/internal/notifications"
)

const stalledReason = "stalled"

// SweepResult describes the most recent watchdog pass.
type SweepResult struct {
	At     time.Time `json:"at"`
	Marked int       `json:"marked"`
	Error  string    `json:"error,omitempty"`
}

// Watchdog fails records whose driver disappeared mid-stage, for example
// after a crash or a restart during processing.
type Watchdog struct {
	store    *analysis.Store
	notifier notifications.Service
	logger   *slog.Logger
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last SweepResult
}

// NewWatchdog constructs a watchdog. A non-positive timeout or interval turns
// Run into a no-op; Sweep still works on demand.
func NewWatchdog(store *analysis.Store, notifier notifications.Service, logger *slog.Logger, timeout, interval time.Duration) *Watchdog {
	return &Watchdog{
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow-watchdog"),
		timeout:  timeout,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx ends.
func (w *Watchdog) Run(ctx context.Context) {
	if w.timeout <= 0 || w.interval <= 0 {
		w.logger.Debug("watchdog disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(w.logger, "stalled sweep failed", "watchdog_failed",
				logging.Error(err),
				logging.Alert("storage_failure"),
				logging.String(logging.FieldErrorHint, "check analysis database access"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep marks every processing record untouched for longer than the stall
// timeout as failed. Records another writer moved in the meantime are skipped.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	now := w.now()
	stalled, err := w.store.ListStalled(ctx, now.Add(-w.timeout))
	if err != nil {
		w.record(SweepResult{At: now, Error: err.Error()})
		return 0, err
	}

	marked := 0
	var ids []int64
	for _, rec := range stalled {
		if _, err := w.store.MarkStalled(ctx, rec.ID, rec.Status, stalledReason); err != nil {
			if errors.Is(err, analysis.ErrStaleWrite) || errors.Is(err, analysis.ErrNotFound) {
				w.logger.Debug("stalled record moved before sweep", logging.Int64(logging.FieldAnalysisID, rec.ID))
				continue
			}
			w.record(SweepResult{At: now, Marked: marked, Error: err.Error()})
			return marked, err
		}
		marked++
		ids = append(ids, rec.ID)
		logging.WarnWithContext(w.logger, "analysis marked stalled", "analysis_stalled",
			logging.Int64(logging.FieldAnalysisID, rec.ID),
			logging.String("status", string(rec.Status)),
			logging.Duration("idle", now.Sub(rec.UpdatedAt)),
			logging.String(logging.FieldErrorHint, "resubmit the recording"),
			logging.String(logging.FieldImpact, "analysis failed without a stage result"),
		)
	}

	w.record(SweepResult{At: now, Marked: marked})
	if marked > 0 && w.notifier != nil {
		if err := w.notifier.Publish(ctx, notifications.EventStalledSwept, notifications.Payload{"count": marked, "ids": ids}); err != nil {
			w.logger.Debug("stalled notification failed", logging.Error(err))
		}
	}
	return marked, nil
}

// LastSweep reports the outcome of the most recent Sweep.
func (w *Watchdog) LastSweep() SweepResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Watchdog) record(result SweepResult) {
	w.mu.Lock()
	w.last = result
	w.mu.Unlock()
}

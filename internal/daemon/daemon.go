package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"classcoach/internal/analysis"
	"classcoach/internal/api"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/upload"
	"classcoach/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *analysis.Store
	workflow *workflow.Manager
	uploads  *upload.Store
	reporter *api.StatusReporter
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	UploadDir    string
}

// Submission is one recording handed to the daemon.
type Submission struct {
	Filename string
	Content  io.Reader
	Context  analysis.EducationalContext
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *analysis.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		uploads:  upload.NewStore(cfg, logger),
		reporter: api.NewStatusReporter(store),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("ensure data directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another classcoach daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("classcoach daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("classcoach daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// APIAddress returns the address the HTTP API is bound to, or "" when stopped.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Submit stores an uploaded recording, creates its record, and asks the
// workflow to start it.
func (d *Daemon) Submit(ctx context.Context, sub Submission) (*analysis.AudioAnalysis, error) {
	saved, err := d.uploads.Save(ctx, sub.Filename, sub.Content)
	if err != nil {
		return nil, err
	}
	rec, err := d.register(ctx, saved, sub.Context)
	if err != nil {
		d.discardUpload(saved.Ref)
		return nil, err
	}
	return rec, nil
}

func (d *Daemon) register(ctx context.Context, saved upload.Saved, lesson analysis.EducationalContext) (*analysis.AudioAnalysis, error) {
	rec, err := d.store.Create(ctx, analysis.NewAnalysis{
		SourceRef:        saved.Ref,
		OriginalFilename: saved.OriginalFilename,
		Context:          lesson,
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("analysis submitted",
		logging.String(logging.FieldEventType, "analysis_submitted"),
		logging.Int64(logging.FieldAnalysisID, rec.ID),
		logging.String("original_filename", rec.OriginalFilename),
		logging.String("subject", rec.Context.Subject),
	)
	if !d.workflow.Submit(rec.ID) {
		d.logger.Debug("submit trigger not accepted; poll will pick it up", logging.Int64(logging.FieldAnalysisID, rec.ID))
	}
	return rec, nil
}

func (d *Daemon) discardUpload(ref string) {
	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove orphaned upload", logging.String("ref", ref), logging.Error(err))
	}
}

// Reporter exposes read-only analysis queries.
func (d *Daemon) Reporter() *api.StatusReporter {
	return d.reporter
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		UploadDir:    d.uploads.Dir(),
	}
}

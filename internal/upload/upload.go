package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"classcoach/internal/config"
	"classcoach/internal/fileutil"
	"classcoach/internal/logging"
	"classcoach/internal/textutil"
)

// ErrValidation marks a rejected recording.
var ErrValidation = errors.New("invalid upload")

// AllowedExtensions lists the accepted recording formats.
var AllowedExtensions = []string{"mp3", "wav", "m4a", "ogg", "flac"}

const (
	timestampLayout = "20060102_150405"
	maxNameAttempts = 100
)

// Saved describes a stored recording.
type Saved struct {
	Ref              string
	OriginalFilename string
	Size             int64
}

// Store writes recordings into the upload directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore constructs a Store from configuration.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		dir:      cfg.Paths.UploadDir,
		maxBytes: cfg.MaxUploadBytes(),
		logger:   logging.NewComponentLogger(logger, "upload"),
		now:      time.Now,
	}
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// Validate checks a client-supplied filename.
func Validate(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: no file selected", ErrValidation)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" || !slices.Contains(AllowedExtensions, ext) {
		return fmt.Errorf("%w: unsupported format %q; upload MP3, WAV, M4A, OGG or FLAC", ErrValidation, filepath.Ext(filename))
	}
	return nil
}

// Save validates filename and streams content into the upload directory.
func (s *Store) Save(ctx context.Context, filename string, content io.Reader) (Saved, error) {
	if err := Validate(filename); err != nil {
		return Saved{}, err
	}
	if err := ctx.Err(); err != nil {
		return Saved{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("create upload directory: %w", err)
	}

	staged, err := fileutil.Stage(s.dir, contextReader{ctx: ctx, r: content}, s.maxBytes)
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return Saved{}, fmt.Errorf("%w: file exceeds the %s limit", ErrValidation, humanize.IBytes(uint64(s.maxBytes)))
		}
		return Saved{}, fmt.Errorf("store recording: %w", err)
	}
	defer staged.Discard()
	if staged.Size == 0 {
		return Saved{}, fmt.Errorf("%w: file is empty", ErrValidation)
	}

	base := s.storedName(filename)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		dst := filepath.Join(s.dir, withSuffix(base, attempt))
		err := staged.Commit(dst)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return Saved{}, fmt.Errorf("store recording: %w", err)
		}
		s.logger.Info("recording stored",
			logging.String(logging.FieldEventType, "upload_stored"),
			logging.String("ref", dst),
			logging.String("original_filename", filename),
			logging.String("size", humanize.IBytes(uint64(staged.Size))),
		)
		return Saved{Ref: dst, OriginalFilename: filename, Size: staged.Size}, nil
	}
	return Saved{}, fmt.Errorf("store recording: no free name for %s", base)
}

// Import copies a local recording into the upload directory, as the CLI does
// for in-process analysis.
func (s *Store) Import(ctx context.Context, path string) (Saved, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Saved{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if info.IsDir() {
		return Saved{}, fmt.Errorf("%w: %s is a directory", ErrValidation, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return Saved{}, fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()
	return s.Save(ctx, filepath.Base(path), file)
}

func (s *Store) storedName(filename string) string {
	name := textutil.SecureFileName(filepath.Base(filename))
	ext := filepath.Ext(filename)
	if !strings.EqualFold(filepath.Ext(name), ext) || strings.TrimSuffix(name, filepath.Ext(name)) == "" {
		name = "recording" + strings.ToLower(ext)
	}
	return s.now().Format(timestampLayout) + "_" + name
}

func withSuffix(name string, attempt int) string {
	if attempt == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), attempt, ext)
}

// contextReader stops a long upload copy once ctx ends.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

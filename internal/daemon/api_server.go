package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"classcoach/internal/analysis"
	"classcoach/internal/api"
	"classcoach/internal/config"
	"classcoach/internal/logging"
	"classcoach/internal/services"
	"classcoach/internal/upload"
)

const (
	// multipartOverhead allows room for the form fields around the recording.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 64 << 10
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	maxBytes int64
	handler  http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		maxBytes: cfg.MaxUploadBytes() + multipartOverhead,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("POST /api/analyses", authMiddleware(token, srv.handleSubmit))
	mux.HandleFunc("GET /api/analyses", authMiddleware(token, srv.handleHistory))
	mux.HandleFunc("GET /api/analyses/{id}", authMiddleware(token, srv.handleDescribe))
	mux.HandleFunc("GET /api/analyses/{id}/status", authMiddleware(token, srv.handleAnalysisStatus))
	mux.HandleFunc("GET /api/analyses/{id}/results", authMiddleware(token, srv.handleResults))
	srv.handler = srv.withRequestID(mux)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled; no bind address configured")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID tags each request with a correlation id, honoring one
// supplied by the caller.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(api.RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(api.RequestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		UploadDir:    status.UploadDir,
		Workflow:     api.FromStatusSummary(status.Workflow),
	})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}

	var (
		lesson analysis.EducationalContext
		saved  *upload.Saved
		kept   bool
	)
	fields := map[string]*string{
		api.FieldSubject:           &lesson.Subject,
		api.FieldGradeLevel:        &lesson.GradeLevel,
		api.FieldLessonTopic:       &lesson.LessonTopic,
		api.FieldAdditionalContext: &lesson.AdditionalContext,
	}
	defer func() {
		if saved != nil && !kept {
			s.daemon.discardUpload(saved.Ref)
		}
	}()

	// Fields may arrive before or after the file, so the record is created
	// only once the whole form has been read.
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeSubmitError(w, err)
			return
		}
		name := part.FormName()
		switch {
		case name == api.FieldAudioFile:
			if saved != nil {
				part.Close()
				s.writeError(w, http.StatusBadRequest, "only one audio file may be uploaded")
				return
			}
			stored, err := s.daemon.uploads.Save(r.Context(), part.FileName(), part)
			part.Close()
			if err != nil {
				s.writeSubmitError(w, err)
				return
			}
			saved = &stored
		case fields[name] != nil:
			value, err := readField(part)
			part.Close()
			if err != nil {
				s.writeSubmitError(w, err)
				return
			}
			*fields[name] = value
		default:
			part.Close()
		}
	}
	if saved == nil {
		s.writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}

	rec, err := s.daemon.register(r.Context(), *saved, lesson)
	if err != nil {
		s.writeSubmitError(w, err)
		return
	}
	kept = true
	s.writeJSON(w, http.StatusCreated, api.SubmitResponse{ID: rec.ID, Status: string(rec.Status)})
}

// readField reads a text form field, rejecting values over maxFieldBytes
// rather than storing them cut short.
func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldBytes {
		return "", fmt.Errorf("%w: field %s exceeds %d bytes", upload.ErrValidation, part.FormName(), maxFieldBytes)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	items, err := s.daemon.reporter.History(r.Context(), limit)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	if items == nil {
		items = []api.Analysis{}
	}
	s.writeJSON(w, http.StatusOK, api.AnalysisListResponse{Items: items})
}

func (s *apiServer) handleDescribe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	item, err := s.daemon.reporter.Describe(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	status, err := s.daemon.reporter.GetStatus(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleResults(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	results, err := s.daemon.reporter.Results(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid analysis id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "analysis not found")
	case errors.Is(err, api.ErrNotCompleted):
		s.writeError(w, http.StatusBadRequest, api.ErrNotCompleted.Error())
	default:
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "analysis lookup failed", "api_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check analysis database access"),
		)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *apiServer) writeSubmitError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrValidation):
		s.writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), upload.ErrValidation.Error()+": "))
	case errors.As(err, &tooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the configured size limit")
	case errors.Is(err, context.Canceled):
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("submission failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store submission")
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/feelback/pkg/log"
	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps a single decoded request body
const maxBodyBytes = 4 << 20

// Batch is one accepted POST to /v1/events
type Batch struct {
	ID       string              `json:"id"`
	Received time.Time           `json:"received"`
	Events   []types.QueuedEvent `json:"events"`
}

// FeedbackRecord is one accepted POST to /v1/feedback
type FeedbackRecord struct {
	ID       string         `json:"id"`
	Received time.Time      `json:"received"`
	Feedback types.Feedback `json:"feedback"`
}

// Receipt is the body returned for an accepted request
type Receipt struct {
	ID       string `json:"id"`
	Accepted int    `json:"accepted"`
}

// Server is an in-memory collector used for local runs and tests
type Server struct {
	apiKey string
	logger zerolog.Logger

	mu         sync.Mutex
	batches    []Batch
	feedback   []FeedbackRecord
	failStatus int

	httpServer *http.Server
}

// NewServer creates a collector. An empty apiKey accepts any bearer token.
func NewServer(apiKey string) *Server {
	return &Server{
		apiKey: apiKey,
		logger: log.WithComponent("collector"),
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", metrics.HealthHandler())
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.injectFailure)

		r.Post("/events", s.handleEvents)
		r.Post("/feedback", s.handleFeedback)
		r.Get("/batches", s.handleListBatches)
	})

	return r
}

// Start listens on addr in the background
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", addr).Msg("Collector listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Collector server error")
		}
	}()

	return nil
}

// Stop shuts the listener down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// SetFailStatus makes every /v1 request answer with status. Zero restores normal operation.
func (s *Server) SetFailStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// Batches returns a copy of every accepted batch, oldest first
func (s *Server) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Batch(nil), s.batches...)
}

// Events returns every accepted event in arrival order
func (s *Server) Events() []types.QueuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.QueuedEvent
	for _, b := range s.batches {
		out = append(out, b.Events...)
	}
	return out
}

// Feedback returns a copy of every accepted feedback record
func (s *Server) Feedback() []FeedbackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FeedbackRecord(nil), s.feedback...)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var batch types.EventBatch
	if err := decodeBody(r, &batch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(batch.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events must not be empty")
		return
	}

	rec := Batch{
		ID:       uuid.New().String(),
		Received: time.Now().UTC(),
		Events:   batch.Events,
	}

	s.mu.Lock()
	s.batches = append(s.batches, rec)
	s.mu.Unlock()

	s.logger.Debug().
		Str("batch_id", rec.ID).
		Int("events", len(rec.Events)).
		Msg("Accepted event batch")

	writeJSON(w, http.StatusAccepted, Receipt{ID: rec.ID, Accepted: len(rec.Events)})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb types.Feedback
	if err := decodeBody(r, &fb); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fb.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	rec := FeedbackRecord{
		ID:       uuid.New().String(),
		Received: time.Now().UTC(),
		Feedback: fb,
	}

	s.mu.Lock()
	s.feedback = append(s.feedback, rec)
	s.mu.Unlock()

	s.logger.Debug().
		Str("feedback_id", rec.ID).
		Str("type", fb.Type).
		Msg("Accepted feedback")

	writeJSON(w, http.StatusAccepted, Receipt{ID: rec.ID, Accepted: 1})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Batches())
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if s.apiKey != "" && token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := s.failStatus
		s.mu.Unlock()

		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("Request completed")
	})
}

// decodeBody reads a JSON body, inflating it first when Content-Encoding is gzip
func decodeBody(r *http.Request, v any) error {
	var body io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		body = zr
	}

	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

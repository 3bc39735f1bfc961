package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// maxBodyBytes caps the POST body size.
const maxBodyBytes = 1 << 20

// readingPublisher receives every Reading after it has been stored.
type readingPublisher interface {
	Publish(ctx context.Context, r Reading) error
}

// server holds the dependencies of the API handlers.
type server struct {
	store     *Store
	publisher readingPublisher
	logger    *zap.Logger
}

func newServer(store *Store, publisher readingPublisher, logger *zap.Logger) *server {
	return &server{
		store:     store,
		publisher: publisher,
		logger:    logger.Named("http"),
	}
}

// routes registers the API, live-update, metrics and static handlers.
// Verb/path combinations not registered here get the mux's 405.
func (s *server) routes(hub http.Handler, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/esp32-data", s.handlePostReading)
	mux.HandleFunc("GET /api/esp32-data", s.handleGetReading)
	mux.Handle("GET /ws", hub)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /", http.FileServer(http.Dir(staticDir)))
	return cors.AllowAll().Handler(mux)
}

// handlePostReading stores the reading sent by the device and echoes it back.
func (s *server) handlePostReading(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		s.reject(w, http.StatusBadRequest, "malformed", err)
		return
	}

	reading, err := s.store.Set(in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.reject(w, http.StatusBadRequest, "validation", err)
			return
		}
		s.logger.Error("error storing reading", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, postResponse{Error: "internal error"})
		return
	}
	if err := s.publisher.Publish(r.Context(), reading); err != nil {
		s.logger.Warn("error publishing reading", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, postResponse{Success: true, Data: &reading})
}

// handleGetReading returns the latest reading.
func (s *server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *server) reject(w http.ResponseWriter, status int, reason string, err error) {
	ReadingsRejected.WithLabelValues(reason).Inc()
	s.logger.Debug("rejected reading", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, postResponse{Error: err.Error()})
}

// writeJSON encodes v before writing the header so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

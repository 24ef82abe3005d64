// Package httpapi exposes the admin surface: job status and history, manual
// triggers, and the embedding cost report.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/madpin/Neureed-sub002/internal/logging"
)

type Server struct {
	jobsAPI *JobsAPI
	logger  *logging.Logger
	server  *http.Server
}

func New(jobsAPI *JobsAPI, logger *logging.Logger) *Server {
	return &Server{
		jobsAPI: jobsAPI,
		logger:  logger,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	s.jobsAPI.RegisterRoutes(mux, s.corsMiddleware)

	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // manual batch triggers respond synchronously
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

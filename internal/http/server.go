// Package http exposes the engine's admin API: generation, matching,
// consolidation and the read projections the back-office consumes. The
// visual admin surface itself lives elsewhere and talks JSON to this.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bollette/internal/services"
	"bollette/internal/storage"
)

type Server struct {
	srv          *http.Server
	repo         *storage.SQLiteRepository
	generator    *services.Generator
	matcher      *services.Matcher
	ledger       *services.Ledger
	consolidator *services.Consolidator
	queries      *services.Queries

	// Generation window applied when /api/generate gets no explicit one.
	monthsBack    int
	monthsForward int
}

func NewServer(port string,
	repo *storage.SQLiteRepository,
	generator *services.Generator,
	matcher *services.Matcher,
	ledger *services.Ledger,
	consolidator *services.Consolidator,
	queries *services.Queries,
	monthsBack, monthsForward int,
) *Server {
	s := &Server{
		repo:          repo,
		generator:     generator,
		matcher:       matcher,
		ledger:        ledger,
		consolidator:  consolidator,
		queries:       queries,
		monthsBack:    monthsBack,
		monthsForward: monthsForward,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      s.withLogging(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// Engine operations
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/consolidate", s.handleConsolidate)
	mux.HandleFunc("POST /api/orphans/fix", s.handleFixOrphans)
	mux.HandleFunc("POST /api/match", s.handleMatch)

	// Read projections
	mux.HandleFunc("GET /api/balances", s.handleBalances)
	mux.HandleFunc("GET /api/bills", s.handleBills)

	// Payment status
	mux.HandleFunc("POST /api/payments/{id}/paid", s.handlePaymentPaid)
	mux.HandleFunc("POST /api/bills/{id}/paid", s.handleBillPaid)

	// Template and rule lifecycle: create, edit, deactivate. Never delete.
	mux.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("POST /api/templates/{id}/deactivate", s.handleDeactivateTemplate)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("POST /api/rules/{id}/deactivate", s.handleDeactivateRule)

	// Roster sync from the user-directory component
	mux.HandleFunc("PUT /api/founders", s.handleReplaceFounders)

	mux.HandleFunc("GET /api/health", s.handleHealth)
}

func (s *Server) Start() error {
	slog.Info("Admin API listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(w, r)

		slog.InfoContext(r.Context(), "Request handled",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

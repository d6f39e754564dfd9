// Package api serves the workflow management and execution REST endpoints
// plus a WebSocket feed of live execution checkpoints. Workflow documents
// travel as YAML, execution requests and traces as JSON, and errors as
// RFC 7807 application/problem+json.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowkeep/flowkeep/pkg/app"
	"github.com/flowkeep/flowkeep/pkg/config"
	"github.com/flowkeep/flowkeep/pkg/logger"
)

// Server is the HTTP API server for the workflow service.
type Server struct {
	config      config.Config
	container   *app.Container
	wsHub       *WSHub
	eventBridge *EventBridge
	startTime   time.Time
	server      *http.Server
}

// NewServer creates a new API server instance wired to the application
// container.
func NewServer(cfg config.Config, container *app.Container) *Server {
	s := &Server{
		config:    cfg,
		container: container,
		startTime: time.Now(),
	}
	s.wsHub = NewWSHub()
	s.eventBridge = NewEventBridge(container.EventBus, s.wsHub)
	return s
}

// handler builds the full route table wrapped in the request-id and
// deadline middleware.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Workflow management (YAML in/out)
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows/{ns}/{id}", s.handleCreateNextRevision)
	mux.HandleFunc("GET /api/workflows/{ns}/{id}", s.handleListRevisions)
	mux.HandleFunc("DELETE /api/workflows/{ns}/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("PUT /api/workflows/{ns}/{id}/{version}", s.handleUpdateRevision)
	mux.HandleFunc("GET /api/workflows/{ns}/{id}/{version}", s.handleGetRevision)
	mux.HandleFunc("DELETE /api/workflows/{ns}/{id}/{version}", s.handleDeleteRevision)
	mux.HandleFunc("POST /api/workflows/{ns}/{id}/{version}/activate", s.handleActivate)
	mux.HandleFunc("POST /api/workflows/{ns}/{id}/{version}/deactivate", s.handleDeactivate)
	mux.HandleFunc("GET /api/workflows/{ns}/{id}/executions", s.handleListExecutions)

	// Execution (JSON)
	mux.HandleFunc("POST /api/executions", s.handleExecute)
	mux.HandleFunc("GET /api/executions/{executionId}", s.handleGetExecution)

	// WebSocket live feed of one execution's checkpoints
	mux.HandleFunc("GET /api/executions/{executionId}/stream", s.wsHub.HandleWebSocket)

	return requestIDMiddleware(deadlineMiddleware(s.config.RequestTimeout(), mux))
}

// Start begins listening on the configured host:port.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket streams outlive any fixed write deadline
		IdleTimeout:  120 * time.Second,
	}

	logger.InfoC(logger.CategoryAPI, "API server starting", "addr", s.config.Addr())

	go s.wsHub.Run(ctx)
	s.eventBridge.Run()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorC(logger.CategoryAPI, "server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Middleware ---

// requestIDMiddleware assigns each request a correlation ID, echoed in the
// X-Request-Id response header and attached to any log lines the handler
// emits.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// deadlineMiddleware enforces the per-request deadline at the transport
// boundary. WebSocket upgrades are exempt: a live stream has no natural
// deadline.
func deadlineMiddleware(timeout time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.ErrorC(logger.CategoryAPI, "encode response", "error", err)
	}
}

func revisionPath(ns, id string, version int) string {
	return fmt.Sprintf("/api/workflows/%s/%s/%d", ns, id, version)
}

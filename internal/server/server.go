// Package server exposes the discovery engine over HTTP: start runs,
// inspect session trees and call history, and trigger branch refinement.
// Discovery runs execute in the background; the API only reads the
// ledger and schedules work.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/ivrmap/internal/dialer"
	"github.com/sells-group/ivrmap/internal/discovery"
	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
	"github.com/sells-group/ivrmap/internal/store"
)

// Runner is the discovery capability behind the API. *discovery.Engine
// implements it; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, opts discovery.RunOptions) (*model.Session, error)
}

// Server is the HTTP API. It tracks identities with a run in flight so
// a second discover/refine request for the same phone number is refused
// instead of racing the first run's session writes.
type Server struct {
	store          store.Store
	runner         Runner
	refineMaxCalls int

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates a Server. refineMaxCalls bounds the short runs started by
// the refine endpoint.
func New(st store.Store, runner Runner, refineMaxCalls int) *Server {
	if refineMaxCalls < 1 {
		refineMaxCalls = 2
	}
	return &Server{
		store:          st,
		runner:         runner,
		refineMaxCalls: refineMaxCalls,
		active:         map[string]struct{}{},
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/discover", s.handleDiscover)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{key}/tree", s.handleGetTree)
		r.Get("/sessions/{key}/calls", s.handleGetCalls)
		r.Post("/sessions/{key}/refine", s.handleRefine)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type discoverRequest struct {
	Phone        string      `json:"phone"`
	MinCalls     int         `json:"min_calls"`
	MaxCalls     int         `json:"max_calls"`
	OverridePath model.Path  `json:"override_path,omitempty"`
	Seed         *model.Node `json:"seed,omitempty"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := dialer.NormalizeIdentity(req.Phone)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid phone number")
		return
	}
	key := model.SessionKey(identity)

	opts := discovery.RunOptions{
		Identity:     identity,
		MinCalls:     req.MinCalls,
		MaxCalls:     req.MaxCalls,
		OverridePath: req.OverridePath,
		SeedTree:     req.Seed,
	}
	if !s.startRun(key, opts) {
		respondError(w, http.StatusConflict, "discovery already running for this number")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"session_id": key,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		zap.L().Error("list sessions failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type treeResponse struct {
	Root         *model.Node    `json:"root"`
	TotalCost    float64        `json:"total_cost"`
	CallCount    int            `json:"call_count"`
	VisitedPaths model.PathList `json:"visited_paths"`
	PendingPaths model.PathList `json:"pending_paths"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Complete     bool           `json:"complete"`
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	visited, pending := graph.Walk(session.LastRoot)
	if visited == nil {
		visited = model.PathList{}
	}
	if pending == nil {
		pending = model.PathList{}
	}
	respondJSON(w, http.StatusOK, treeResponse{
		Root:         session.LastRoot,
		TotalCost:    session.TotalCost,
		CallCount:    len(session.Calls),
		VisitedPaths: visited,
		PendingPaths: pending,
		UpdatedAt:    session.UpdatedAt,
		Complete:     graph.IsComplete(session.LastRoot),
	})
}

func (s *Server) handleGetCalls(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	calls := session.Calls
	if calls == nil {
		calls = []model.CallRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"calls":      calls,
		"total_cost": session.TotalCost,
	})
}

type refineRequest struct {
	NodeID string `json:"node_id"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NodeID == "" {
		respondError(w, http.StatusBadRequest, "node_id is required")
		return
	}

	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	node := graph.Find(session.LastRoot, req.NodeID)
	if node == nil {
		respondError(w, http.StatusNotFound, "node not found in session tree")
		return
	}
	path := node.Path
	if len(path) == 0 && node.ID != model.RootID {
		path = model.PathFromID(node.ID)
	}

	opts := discovery.RunOptions{
		Identity:     session.Identity,
		MinCalls:     1,
		MaxCalls:     s.refineMaxCalls,
		OverridePath: path,
	}
	if !s.startRun(session.Key(), opts) {
		respondError(w, http.StatusConflict, "discovery already running for this number")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"session_id": session.Key(),
	})
}

// loadSession fetches the session for the request's {key}, writing the
// error response itself when the lookup fails.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	key := chi.URLParam(r, "key")
	session, err := s.store.LoadSession(r.Context(), key)
	if err != nil {
		zap.L().Error("load session failed", zap.String("key", key), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

// startRun claims the identity's single-flight slot and launches the run
// in the background. Returns false if a run already holds the slot. The
// run gets a fresh context: an API request ending must never abandon a
// call mid-poll.
func (s *Server) startRun(key string, opts discovery.RunOptions) bool {
	s.mu.Lock()
	if _, busy := s.active[key]; busy {
		s.mu.Unlock()
		return false
	}
	s.active[key] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, key)
			s.mu.Unlock()
		}()
		session, err := s.runner.Run(context.Background(), opts)
		if err != nil {
			zap.L().Error("background discovery run failed",
				zap.String("session", key),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("background discovery run finished",
			zap.String("session", key),
			zap.Int("calls", len(session.Calls)),
			zap.Float64("total_cost", session.TotalCost),
		)
	}()
	return true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// Package api provides the HTTP API for querying world state.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/wildsim/internal/agents"
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/engine"
	"github.com/talgya/wildsim/internal/persistence"
	"github.com/talgya/wildsim/internal/world"
)

const maxSSEConns = 2

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey string // Bearer token for SSE stream endpoint. Empty = streaming disabled.

	// GoalLimiter throttles goal requests per client. Nil uses 60 per hour.
	GoalLimiter *RateLimiter

	// Active SSE connection count (atomic).
	sseConns int32
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	if s.GoalLimiter == nil {
		s.GoalLimiter = NewRateLimiter(60, time.Hour)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/recipes", s.handleRecipes)
	mux.HandleFunc("/api/v1/resources", s.handleResources)
	mux.HandleFunc("/api/v1/map", s.handleMap)

	// SSE streaming endpoint (GET, relay bearer token).
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	handler := s.Handler()
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Sim.Read(func() {
		status = map[string]any{
			"name":          "Wildsim",
			"tick":          s.Sim.LastTick,
			"sim_time":      engine.SimTime(s.Sim.LastTick),
			"season":        engine.SeasonName(s.Sim.CurrentSeason),
			"population":    s.Sim.Stats.TotalPopulation,
			"deaths":        s.Sim.Stats.Deaths,
			"arrivals":      s.Sim.Stats.Arrivals,
			"goal_failures": s.Sim.Stats.GoalFailures,
			"resources":     len(s.Sim.WorldMap.Resources),
		}
	})
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

type agentSummary struct {
	ID       agents.AgentID       `json:"id"`
	Name     string               `json:"name"`
	Species  string               `json:"species"`
	Position world.Position       `json:"position"`
	Behavior agents.BehaviorState `json:"behavior"`
	Hunger   float64              `json:"hunger"`
	Thirst   float64              `json:"thirst"`
	Rest     float64              `json:"rest"`
	Goal     string               `json:"goal,omitempty"`
	Alive    bool                 `json:"alive"`
}

// handleAgents lists agents. ?behavior= filters by behavior state and
// ?all=1 includes the dead.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	behavior := agents.BehaviorState(r.URL.Query().Get("behavior"))
	all := r.URL.Query().Get("all") == "1"

	result := []agentSummary{}
	s.Sim.Read(func() {
		for _, a := range s.Sim.Agents {
			if !a.Alive && !all {
				continue
			}
			if behavior != "" && a.Behavior != behavior {
				continue
			}
			sum := agentSummary{
				ID:       a.ID,
				Name:     a.Name,
				Species:  a.Species,
				Position: a.Position,
				Behavior: a.Behavior,
				Hunger:   a.Drives.Hunger.Value,
				Thirst:   a.Drives.Thirst.Value,
				Rest:     a.Drives.Rest.Value,
				Alive:    a.Alive,
			}
			if g := a.CurrentGoal(); g != nil {
				sum.Goal = string(g.Type)
			}
			result = append(result, sum)
		}
	})
	writeJSON(w, result)
}

// handleAgentRoutes serves /agent/:id, /agent/:id/goals and
// POST /agent/:id/goal.
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api, v1, agent, :id [, sub]
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}
	agentID := agents.AgentID(id)

	sub := ""
	if len(parts) >= 5 {
		sub = parts[4]
	}

	switch sub {
	case "":
		s.writeAgent(w, agentID, func(a *agents.Agent) any { return a })
	case "goals":
		s.writeAgent(w, agentID, func(a *agents.Agent) any {
			return map[string]any{
				"state":    a.Goals.State(),
				"current":  a.Goals.Current,
				"queue":    a.Goals.Queue,
				"deferred": a.Goals.Deferred,
			}
		})
	case "goal":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.adminOnly(RateLimitMiddleware(s.GoalLimiter, func(w http.ResponseWriter, r *http.Request) {
			s.handleRequestGoal(w, r, agentID)
		}))(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// writeAgent marshals a view of one agent under the read lock.
func (s *Server) writeAgent(w http.ResponseWriter, id agents.AgentID, view func(*agents.Agent) any) {
	var (
		data  json.RawMessage
		found bool
		err   error
	)
	s.Sim.Read(func() {
		a, ok := s.Sim.AgentIndex[id]
		if !ok {
			return
		}
		found = true
		data, err = json.Marshal(view(a))
	})
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("encoding agent", "agent_id", id, "error", err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, data)
}

func (s *Server) handleRequestGoal(w http.ResponseWriter, r *http.Request, id agents.AgentID) {
	var req struct {
		Recipe string `json:"recipe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Recipe == "" {
		http.Error(w, "body must be {\"recipe\": \"<id>\"}", http.StatusBadRequest)
		return
	}

	g, err := s.Sim.RequestGoal(id, req.Recipe)
	switch {
	case errors.Is(err, engine.ErrAgentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, engine.ErrAgentDead):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, crafting.ErrUnknownRecipe):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("goal request failed", "agent_id", id, "error", err)
		http.Error(w, "goal request failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, g)
}

// handleEvents returns recent events, oldest first. ?category= filters and
// ?limit= caps the count (default 50, max 500). When the in-memory log
// is empty the database is consulted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Sim.Read(func() {
		for _, e := range s.Sim.Events {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
	})

	if len(events) == 0 && s.DB != nil {
		stored, err := s.DB.RecentEvents(limit)
		if err != nil {
			slog.Error("loading events", "error", err)
		}
		for i := len(stored) - 1; i >= 0; i-- {
			if category == "" || stored[i].Category == category {
				events = append(events, stored[i])
			}
		}
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var data json.RawMessage
	var err error
	s.Sim.Read(func() { data, err = json.Marshal(s.Sim.Stats) })
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, data)
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	if s.Sim.Catalog == nil {
		writeJSON(w, []crafting.Recipe{})
		return
	}
	writeJSON(w, s.Sim.Catalog.Recipes())
}

// handleResources lists resource points, optionally filtered by ?tag=.
// Depleted points are included so regrowth can be watched.
func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")

	result := []world.Resource{}
	s.Sim.Read(func() {
		for _, res := range s.Sim.WorldMap.Resources {
			if tag == "" || res.HasTag(tag) {
				result = append(result, *res)
			}
		}
	})
	writeJSON(w, result)
}

// handleMap returns all hexes for a map renderer.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type hexEntry struct {
		Q         int     `json:"q"`
		R         int     `json:"r"`
		Terrain   uint8   `json:"terrain"`
		Elevation float64 `json:"elevation"`
	}

	m := s.Sim.WorldMap // terrain never changes after generation
	hexes := make([]hexEntry, 0, len(m.Hexes))
	for _, h := range m.Hexes {
		hexes = append(hexes, hexEntry{
			Q:         h.Coord.Q,
			R:         h.Coord.R,
			Terrain:   uint8(h.Terrain),
			Elevation: h.Elevation,
		})
	}

	writeJSON(w, map[string]any{
		"radius": m.Radius,
		"hexes":  hexes,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Relay key, not the admin key.
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.RelayKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	slog.Info("SSE client connected", "sub_id", subID)
	s.streamEvents(r.Context(), w, flusher, ch)
	slog.Info("SSE client disconnected", "sub_id", subID)
}

// streamEvents replays the last 50 events, then forwards ch until it
// closes or ctx ends. The subscription must already be open so nothing
// emitted during the replay is lost; anything it delivers that the replay
// already covered is skipped.
func (s *Server) streamEvents(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, ch <-chan engine.Event) {
	var recent []engine.Event
	s.Sim.Read(func() {
		start := max(len(s.Sim.Events)-50, 0)
		recent = append(recent, s.Sim.Events[start:]...)
	})
	var lastID uint64
	for _, e := range recent {
		writeSSEEvent(w, e)
		lastID = max(lastID, e.ID)
	}
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.ID <= lastID {
				continue
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

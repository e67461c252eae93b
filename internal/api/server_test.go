package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/wildsim/internal/agents"
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/engine"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

const testKey = "s3cret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := tuning.Default()
	catalog, err := crafting.NewCatalogFromTuning(cfg.Recipes)
	require.NoError(t, err)

	m := world.NewMap(2, 1)
	m.AddResource(&world.Resource{ID: "bush-1", Tags: []string{world.TagFood}, Quantity: 3})
	m.AddResource(&world.Resource{ID: "spring", Tags: []string{world.TagWater}, Quantity: world.Inexhaustible})

	hare := &agents.Agent{ID: 1, Name: "Fern Briar", Species: "hare", Behavior: agents.BehaviorForaging, Alive: true,
		Drives: agents.NewDriveSet(cfg.Drives, 70, 10, 0)}
	deer := &agents.Agent{ID: 2, Name: "Bram Ashvale", Species: "deer", Behavior: agents.BehaviorIdle, Alive: false,
		Drives: agents.NewDriveSet(cfg.Drives, 0, 0, 0)}

	sim := engine.NewSimulation(m, []*agents.Agent{hare, deer}, cfg, catalog)
	return &Server{Sim: sim, Eng: engine.NewEngine(), AdminKey: testKey}
}

func do(t *testing.T, h http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "Spring", status["season"])
	assert.EqualValues(t, 1, status["population"])
	assert.EqualValues(t, 1, status["deaths"])
	assert.EqualValues(t, 2, status["resources"])
	assert.Equal(t, 1.0, status["speed"])
}

func TestAgentsListing(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	var living []agentSummary
	rec := do(t, h, http.MethodGet, "/api/v1/agents", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &living))
	require.Len(t, living, 1)
	assert.Equal(t, "Fern Briar", living[0].Name)
	assert.Equal(t, 70.0, living[0].Hunger)

	var all []agentSummary
	rec = do(t, h, http.MethodGet, "/api/v1/agents?all=1", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	var idle []agentSummary
	rec = do(t, h, http.MethodGet, "/api/v1/agents?all=1&behavior=idle", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idle))
	require.Len(t, idle, 1)
	assert.Equal(t, agents.AgentID(2), idle[0].ID)
}

func TestAgentDetail(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/agent/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var a agents.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "hare", a.Species)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/agent/99", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/agent/abc", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/agent/", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/agent/1/story", "", "").Code)
}

func TestRequestGoal(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	body := `{"recipe": "craft_spear"}`

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/agent/1/goal", body, "wrong").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/agent/1/goal", "", testKey).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/agent/1/goal", body, testKey)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var g agents.Goal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, agents.GoalCraft, g.Type)
	assert.Equal(t, "craft_spear", g.RecipeID)

	rec = do(t, h, http.MethodGet, "/api/v1/agent/1/goals", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), g.ID.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/agent/99/goal", body, testKey).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/agent/2/goal", body, testKey).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/agent/1/goal", `{"recipe":"craft_castle"}`, testKey).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/agent/1/goal", `{}`, testKey).Code)
}

func TestRequestGoalRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.GoalLimiter = NewRateLimiter(1, time.Hour)
	h := s.Handler()
	body := `{"recipe": "craft_cordage"}`

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/agent/1/goal", body, testKey).Code)
	rec := do(t, h, http.MethodPost, "/api/v1/agent/1/goal", body, testKey)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	s := newTestServer(t)
	s.AdminKey = ""
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/speed", `{"speed": 2}`, "anything")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSpeed(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 4}`, testKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, s.Eng.Speed())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": -1}`, testKey).Code)

	rec = do(t, h, http.MethodGet, "/api/v1/speed", "", "")
	assert.JSONEq(t, `{"speed": 4}`, rec.Body.String())
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	s.Sim.EmitEvent(engine.Event{Tick: 1, Description: "Fern the hare crafted cordage", Category: "craft"})
	s.Sim.EmitEvent(engine.Event{Tick: 2, Description: "Bram the deer has died of thirst", Category: "death"})
	s.Sim.EmitEvent(engine.Event{Tick: 3, Description: "Fern the hare crafted spear", Category: "craft"})

	var events []engine.Event
	rec := do(t, h, http.MethodGet, "/api/v1/events?category=craft&limit=1", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, uint64(3), events[0].Tick)

	rec = do(t, h, http.MethodGet, "/api/v1/events?category=arrival", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestResourcesAndRecipes(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	var res []world.Resource
	rec := do(t, h, http.MethodGet, "/api/v1/resources?tag=water", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res, 1)
	assert.Equal(t, "spring", res[0].ID)

	var recipes []crafting.Recipe
	rec = do(t, h, http.MethodGet, "/api/v1/recipes", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recipes))
	assert.NotEmpty(t, recipes)
}

func TestSnapshotWithoutDB(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/snapshot", "", testKey)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamRequiresRelayKey(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/api/v1/stream", "", "").Code)

	s.RelayKey = "relay"
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/stream", "", "nope").Code)
}

func TestStreamSendsEachEventOnce(t *testing.T) {
	s := newTestServer(t)
	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Emitted after subscribing but before the replay is taken, so it
	// arrives through both.
	s.Sim.EmitEvent(engine.Event{Tick: 1, Description: "Fern the hare crafted cordage", Category: "craft"})
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Sim.EmitEvent(engine.Event{Tick: 2, Description: "Bram the deer has died of thirst", Category: "death"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	s.streamEvents(ctx, rec, rec, ch)

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: craft\n"))
	assert.Equal(t, 1, strings.Count(body, "event: death\n"))
	assert.Less(t, strings.Index(body, "event: craft"), strings.Index(body, "event: death"))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are independent")
	assert.Equal(t, 61, rl.RetryAfter("10.0.0.1"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientAddr(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientAddr(req))
}

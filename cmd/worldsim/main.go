// Command worldsim runs the wildlife simulation: animals driven by hunger,
// thirst and fatigue, remembering where resources are and crafting on
// request.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"

	"github.com/talgya/wildsim/internal/agents"
	"github.com/talgya/wildsim/internal/api"
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/engine"
	"github.com/talgya/wildsim/internal/persistence"
	"github.com/talgya/wildsim/internal/telemetry"
	"github.com/talgya/wildsim/internal/tuning"
	"github.com/talgya/wildsim/internal/world"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("WORLDSIM_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Wildsim — drive-based wildlife simulation")

	// Configuration from environment.
	tuningPath := os.Getenv("WORLDSIM_TUNING")
	dbPath := envOrDefault("WORLDSIM_DB", "data/wildsim.db")
	apiPort := envIntOrDefault("WORLDSIM_PORT", 8080)

	// ── Tuning ────────────────────────────────────────────────────────
	cfg := tuning.Default()
	if tuningPath != "" {
		loaded, err := tuning.Load(tuningPath)
		if err != nil {
			slog.Error("failed to load tuning", "path", tuningPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("tuning loaded", "path", tuningPath)
	}
	if seed := os.Getenv("WORLDSIM_SEED"); seed != "" {
		s, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			slog.Error("invalid WORLDSIM_SEED", "value", seed, "error", err)
			os.Exit(1)
		}
		cfg.World.Seed = s
	}

	catalog, err := crafting.NewCatalogFromTuning(cfg.Recipes)
	if err != nil {
		slog.Error("invalid recipes", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── World Map (always regenerated, deterministic from seed) ───────
	slog.Info("generating world map...")
	worldMap := world.Generate(world.GenConfigFromTuning(cfg.World))

	landHexes := 0
	for t, c := range world.TerrainCounts(worldMap) {
		if t != world.TerrainOcean {
			landHexes += c
		}
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}
	for tag, c := range world.TagCounts(worldMap) {
		slog.Info("resources", "tag", tag, "count", c)
	}

	// ── Load or Generate World State ─────────────────────────────────
	var allAgents []*agents.Agent
	var startTick uint64
	var startSeason uint8
	var nextEventID uint64

	spawner := agents.NewSpawner(cfg.World.Seed, cfg)

	if db.HasWorldState() {
		slog.Info("found saved world state, loading...")

		allAgents, err = db.LoadAgents()
		if err != nil {
			slog.Error("failed to load agents", "error", err)
			os.Exit(1)
		}
		restored, err := db.RestoreResources(worldMap)
		if err != nil {
			slog.Error("failed to load resources", "error", err)
			os.Exit(1)
		}

		if tickStr, err := db.GetMeta("last_tick"); err == nil {
			if t, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
				startTick = t
			}
		}
		if seasonStr, err := db.GetMeta("season"); err == nil {
			if s, err := strconv.ParseUint(seasonStr, 10, 8); err == nil {
				startSeason = uint8(s)
			}
		}
		if maxEvent, err := db.MaxEventID(); err == nil {
			nextEventID = maxEvent + 1
		}

		// Keep new ids above every stored agent.
		var maxID agents.AgentID
		for _, a := range allAgents {
			maxID = max(maxID, a.ID)
		}
		spawner.SetNextID(maxID + 1)

		slog.Info("world state restored",
			"agents", len(allAgents),
			"resources", restored,
			"tick", humanize.Comma(int64(startTick)),
			"season", engine.SeasonName(startSeason),
			"sim_time", engine.SimTime(startTick),
		)
	} else {
		slog.Info("no saved state found, spawning population...")
		allAgents = spawner.SpawnPopulation(worldMap, cfg.Population.Count, 0)
	}

	slog.Info("world ready",
		"agents", len(allAgents),
		"resources", len(worldMap.Resources),
		"hexes", worldMap.HexCount(),
	)

	// ── Telemetry ─────────────────────────────────────────────────────
	reporters := telemetry.Fanout{telemetry.LogReporter{Logger: logger}}
	meterReporter, err := telemetry.NewMeterReporter(otel.Meter(telemetry.ScopeName))
	if err != nil {
		slog.Warn("goal failure metrics disabled", "error", err)
	} else {
		reporters = append(reporters, meterReporter)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(worldMap, allAgents, cfg, catalog)
	sim.Spawner = spawner
	sim.Reporter = reporters
	sim.LastTick = startTick
	sim.CurrentSeason = startSeason
	sim.SetNextEventID(nextEventID)

	// Save on fresh generation only (loaded worlds are already saved).
	if startTick == 0 {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	eng := engine.NewEngine()
	eng.Tick = startTick

	eng.OnTick = sim.TickMinute
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("WORLDSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("WORLDSIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		Port:     apiPort,
		AdminKey: adminKey,
		RelayKey: os.Getenv("WORLDSIM_RELAY_KEY"),
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nThe wild is alive: %d animals on %d land hexes.\n", len(allAgents), landHexes)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %s (%s)\n", humanize.Comma(int64(startTick)), engine.SimTime(startTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer", "key", key, "value", v, "error", err)
		return def
	}
	return n
}

// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/wildsim/internal/agents"
	"github.com/talgya/wildsim/internal/crafting"
	"github.com/talgya/wildsim/internal/engine"
	"github.com/talgya/wildsim/internal/world"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		species TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		behavior TEXT NOT NULL,
		alive INTEGER NOT NULL,
		born_tick INTEGER NOT NULL,
		critical_ticks INTEGER NOT NULL,
		drives_json TEXT NOT NULL,
		actions_json TEXT NOT NULL,
		memory_json TEXT NOT NULL,
		goals_json TEXT NOT NULL,
		inventory_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type agentRow struct {
	ID            uint64  `db:"id"`
	Name          string  `db:"name"`
	Species       string  `db:"species"`
	PosX          float64 `db:"pos_x"`
	PosY          float64 `db:"pos_y"`
	Behavior      string  `db:"behavior"`
	Alive         bool    `db:"alive"`
	BornTick      uint64  `db:"born_tick"`
	CriticalTicks uint64  `db:"critical_ticks"`
	DrivesJSON    string  `db:"drives_json"`
	ActionsJSON   string  `db:"actions_json"`
	MemoryJSON    string  `db:"memory_json"`
	GoalsJSON     string  `db:"goals_json"`
	InventoryJSON string  `db:"inventory_json"`
}

func toRow(a *agents.Agent) (agentRow, error) {
	row := agentRow{
		ID:            uint64(a.ID),
		Name:          a.Name,
		Species:       a.Species,
		PosX:          a.Position.X,
		PosY:          a.Position.Y,
		Behavior:      string(a.Behavior),
		Alive:         a.Alive,
		BornTick:      a.BornTick,
		CriticalTicks: a.CriticalTicks,
	}
	for _, col := range []struct {
		dst *string
		v   any
	}{
		{&row.DrivesJSON, a.Drives},
		{&row.ActionsJSON, a.Actions},
		{&row.MemoryJSON, a.Memory},
		{&row.GoalsJSON, a.Goals},
		{&row.InventoryJSON, a.Inventory},
	} {
		raw, err := json.Marshal(col.v)
		if err != nil {
			return row, fmt.Errorf("agent %d: %w", a.ID, err)
		}
		*col.dst = string(raw)
	}
	return row, nil
}

func (r agentRow) toAgent() (*agents.Agent, error) {
	a := &agents.Agent{
		ID:            agents.AgentID(r.ID),
		Name:          r.Name,
		Species:       r.Species,
		Position:      world.Position{X: r.PosX, Y: r.PosY},
		Behavior:      agents.BehaviorState(r.Behavior),
		Alive:         r.Alive,
		BornTick:      r.BornTick,
		CriticalTicks: r.CriticalTicks,
		Inventory:     &crafting.Inventory{},
	}
	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"drives", r.DrivesJSON, &a.Drives},
		{"actions", r.ActionsJSON, &a.Actions},
		{"memory", r.MemoryJSON, &a.Memory},
		{"goals", r.GoalsJSON, &a.Goals},
		{"inventory", r.InventoryJSON, a.Inventory},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("agent %d %s: %w", r.ID, col.name, err)
		}
	}
	return a, nil
}

// SaveAgents writes all agents to the database (full replace).
func (db *DB) SaveAgents(agentList []*agents.Agent) error {
	rows := make([]agentRow, 0, len(agentList))
	for _, a := range agentList {
		row, err := toRow(a)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return db.saveAgentRows(rows)
}

func (db *DB) saveAgentRows(rows []agentRow) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO agents
		(id, name, species, pos_x, pos_y, behavior, alive, born_tick, critical_ticks,
		 drives_json, actions_json, memory_json, goals_json, inventory_json)
		VALUES (:id, :name, :species, :pos_x, :pos_y, :behavior, :alive, :born_tick, :critical_ticks,
		 :drives_json, :actions_json, :memory_json, :goals_json, :inventory_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert agent %d: %w", row.ID, err)
		}
	}

	return tx.Commit()
}

// LoadAgents reads every agent back. Tolerances are not stored; hydrate
// the result before use.
func (db *DB) LoadAgents() ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}

	out := make([]*agents.Agent, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAgent()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveResources stores the current quantity of every finite resource.
func (db *DB) SaveResources(quantities map[string]int) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM resources"); err != nil {
		return err
	}
	for id, q := range quantities {
		if _, err := tx.Exec("INSERT INTO resources (id, quantity) VALUES (?, ?)", id, q); err != nil {
			return fmt.Errorf("insert resource %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// RestoreResources applies saved quantities to a freshly generated map.
// Ids no longer on the map are skipped. Returns how many were applied.
func (db *DB) RestoreResources(m *world.Map) (int, error) {
	var rows []struct {
		ID       string `db:"id"`
		Quantity int    `db:"quantity"`
	}
	if err := db.conn.Select(&rows, "SELECT id, quantity FROM resources"); err != nil {
		return 0, fmt.Errorf("load resources: %w", err)
	}

	applied := 0
	for _, row := range rows {
		if r := m.Resource(row.ID); r != nil {
			r.Quantity = row.Quantity
			applied++
		}
	}
	return applied, nil
}

type eventRow struct {
	ID          uint64 `db:"id"`
	Tick        uint64 `db:"tick"`
	Description string `db:"description"`
	Category    string `db:"category"`
	MetaJSON    string `db:"meta_json"`
}

// SaveEvents appends events to the database. Events already stored are
// left alone.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		meta := []byte("{}")
		if len(e.Meta) > 0 {
			if meta, err = json.Marshal(e.Meta); err != nil {
				return fmt.Errorf("event %d meta: %w", e.ID, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO events (id, tick, description, category, meta_json) VALUES (?, ?, ?, ?, ?)",
			e.ID, e.Tick, e.Description, e.Category, string(meta),
		); err != nil {
			return fmt.Errorf("insert event %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT id, tick, description, category, meta_json FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{ID: r.ID, Tick: r.Tick, Description: r.Description, Category: r.Category}
		if err := json.Unmarshal([]byte(r.MetaJSON), &e.Meta); err != nil {
			return nil, fmt.Errorf("event %d meta: %w", r.ID, err)
		}
		if len(e.Meta) == 0 {
			e.Meta = nil
		}
		events = append(events, e)
	}
	return events, nil
}

// MaxEventID returns the highest stored event id, 0 when there are none.
func (db *DB) MaxEventID() (uint64, error) {
	var id sql.NullInt64
	if err := db.conn.Get(&id, "SELECT MAX(id) FROM events"); err != nil {
		return 0, err
	}
	return uint64(id.Int64), nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasWorldState reports whether a previous run saved its tick.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta("last_tick")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Warn("checking saved state", "error", err)
	}
	return err == nil
}

// SaveWorldState performs a full save of all world state. The simulation
// is only read-locked while the rows are built.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	var (
		rows      []agentRow
		events    []engine.Event
		resources = make(map[string]int)
		tick      uint64
		season    uint8
		buildErr  error
	)
	sim.Read(func() {
		rows = make([]agentRow, 0, len(sim.Agents))
		for _, a := range sim.Agents {
			row, err := toRow(a)
			if err != nil {
				buildErr = err
				return
			}
			rows = append(rows, row)
		}
		events = append(events, sim.Events...)
		for _, r := range sim.WorldMap.Resources {
			if r.Quantity != world.Inexhaustible {
				resources[r.ID] = r.Quantity
			}
		}
		tick = sim.LastTick
		season = sim.CurrentSeason
	})
	if buildErr != nil {
		return fmt.Errorf("save agents: %w", buildErr)
	}

	slog.Info("saving world state", "agents", len(rows), "events", len(events), "tick", tick)

	if err := db.saveAgentRows(rows); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveResources(resources); err != nil {
		return fmt.Errorf("save resources: %w", err)
	}
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("season", strconv.Itoa(int(season))); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/planner"
)

// SQLiteSource implements Source using modernc.org/sqlite, for embedded and
// local deployments.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteSource, error) {
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := database.Exec(pragma); err != nil {
			database.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSource{db: database}, nil
}

var sqliteQueries = map[string]capabilityQuery{
	"faults_by_code": {
		objectType: "fault",
		sql: `SELECT id, code || ': ' || title, symptom, 1.0, 'exact_id'
FROM faults WHERE upper(code) = upper(?1) LIMIT 25`,
	},
	"faults_by_symptom": {
		objectType: "fault",
		sql: `SELECT id, code || ': ' || title, symptom,
  CASE WHEN lower(symptom) = lower(?1) THEN 1.0 ELSE 0.8 END,
  CASE WHEN lower(symptom) = lower(?1) THEN 'exact_canonical' ELSE 'exact_text' END
FROM faults
WHERE symptom LIKE '%' || ?1 || '%' OR title LIKE '%' || ?1 || '%'
ORDER BY 4 DESC, id LIMIT 25`,
	},
	"equipment_by_name": {
		objectType: "equipment",
		sql: `SELECT id, name, location,
  CASE WHEN canonical = ?1 THEN 1.0 ELSE 0.8 END,
  CASE WHEN canonical = ?1 THEN 'exact_canonical' ELSE 'exact_text' END
FROM equipment
WHERE canonical = ?1 OR name LIKE '%' || ?1 || '%'
ORDER BY 4 DESC, id LIMIT 25`,
	},
	"equipment_by_location": {
		objectType: "equipment",
		sql: `SELECT id, name, location, 0.7, 'exact_text'
FROM equipment WHERE location = ?1 OR location LIKE '%' || ?1 || '%'
ORDER BY id LIMIT 25`,
	},
	"parts_by_name": {
		objectType: "part",
		sql: `SELECT id, name, part_number,
  CASE WHEN upper(part_number) = upper(?1) THEN 1.0
       WHEN canonical = ?1 THEN 0.9 ELSE 0.75 END,
  CASE WHEN upper(part_number) = upper(?1) THEN 'exact_id'
       WHEN canonical = ?1 THEN 'exact_canonical' ELSE 'exact_text' END
FROM parts
WHERE upper(part_number) = upper(?1) OR canonical = ?1 OR name LIKE '%' || ?1 || '%'
ORDER BY 4 DESC, id LIMIT 25`,
	},
	"parts_by_stock": {
		objectType: "part",
		sql: `SELECT id, name, stock_status, 0.8, 'exact_canonical'
FROM parts WHERE stock_status = ?1 ORDER BY quantity ASC, id LIMIT 25`,
	},
	"work_orders_by_equipment": {
		objectType: "work_order",
		sql: `SELECT id, summary, equipment, 0.75, 'exact_text'
FROM work_orders WHERE equipment = ?1 OR summary LIKE '%' || ?1 || '%'
ORDER BY opened_at DESC, id LIMIT 25`,
	},
	"documents_fulltext": {
		objectType: "document",
		sql: `SELECT id, title, substr(body, 1, 200), 0.5, 'exact_text'
FROM documents
WHERE title LIKE '%' || ?1 || '%' OR body LIKE '%' || ?1 || '%'
ORDER BY id LIMIT 25`,
	},
}

// Run executes the capability's template with the term as a bound parameter.
func (s *SQLiteSource) Run(ctx context.Context, capability model.Capability, q model.QueryContext) ([]model.Row, error) {
	cq, ok := sqliteQueries[capability.ID]
	if !ok {
		return nil, eris.Errorf("sqlite: no query template for capability %s", capability.ID)
	}

	term := bindTerm(capability.ID, q)
	rows, err := s.db.QueryContext(ctx, cq.sql, term)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: run %s", capability.ID)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var id, label, detail, mode string
		var score float64
		if err := rows.Scan(&id, &label, &detail, &score, &mode); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", capability.ID)
		}
		out = append(out, model.Row{
			ObjectType:  cq.objectType,
			ObjectID:    id,
			MatchMode:   model.MatchMode(mode),
			RawScore:    score,
			MatchedTerm: term,
			Payload:     map[string]any{"label": label, "detail": detail},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate %s", capability.ID)
	}
	return out, nil
}

// Availability snapshots, per table target, whether the table holds rows.
func (s *SQLiteSource) Availability(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, table := range planner.TableTargets() {
		// Table names come from the static planner list, never user input.
		var exists bool
		query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s)`, table)
		if err := s.db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
			return nil, eris.Wrapf(err, "sqlite: probe %s", table)
		}
		out[table] = exists
	}
	return out, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS equipment (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	canonical  TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'operational'
);

CREATE TABLE IF NOT EXISTS faults (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	title      TEXT NOT NULL,
	symptom    TEXT NOT NULL,
	severity   TEXT NOT NULL DEFAULT 'low',
	equipment  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS parts (
	id           TEXT PRIMARY KEY,
	part_number  TEXT NOT NULL,
	name         TEXT NOT NULL,
	canonical    TEXT NOT NULL,
	stock_status TEXT NOT NULL DEFAULT 'in_stock',
	quantity     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS work_orders (
	id         TEXT PRIMARY KEY,
	equipment  TEXT NOT NULL,
	summary    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'open',
	opened_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL
);
`

// Migrate creates the capability tables if missing.
func (s *SQLiteSource) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Seed loads the demo dataset so the engine runs end to end without any
// external database. Idempotent.
func (s *SQLiteSource) Seed(ctx context.Context) error {
	stmts := []struct {
		sql  string
		args [][]any
	}{
		{
			sql: `INSERT OR IGNORE INTO equipment (id, name, canonical, location, status) VALUES (?, ?, ?, ?, ?)`,
			args: [][]any{
				{"eq-001", "Main Engine", "main_engine", "engine_room", "operational"},
				{"eq-002", "Auxiliary Engine", "aux_engine", "engine_room", "operational"},
				{"eq-003", "Air Compressor 1", "compressor", "plant_floor", "degraded"},
				{"eq-004", "Hydraulic Pump A", "hydraulic_pump", "line_1", "operational"},
				{"eq-005", "Boiler 2", "boiler", "boiler_room", "maintenance"},
			},
		},
		{
			sql: `INSERT OR IGNORE INTO faults (id, code, title, symptom, severity, equipment) VALUES (?, ?, ?, ?, ?, ?)`,
			args: [][]any{
				{"flt-001", "OVHT-01", "Coolant overheating", "overheating", "high", "main_engine"},
				{"flt-002", "OVHT-02", "Exhaust overheating", "overheating", "critical", "aux_engine"},
				{"flt-003", "VIB-11", "Shaft vibration out of tolerance", "vibration", "high", "hydraulic_pump"},
				{"flt-004", "LP-21", "Feed pressure below threshold", "low_pressure", "low", "boiler"},
				{"flt-005", "OL-31", "Crankcase oil leak", "oil_leak", "high", "main_engine"},
			},
		},
		{
			sql: `INSERT OR IGNORE INTO parts (id, part_number, name, canonical, stock_status, quantity) VALUES (?, ?, ?, ?, ?, ?)`,
			args: [][]any{
				{"prt-001", "PN-10023", "Main bearing set", "bearing", "in_stock", 14},
				{"prt-002", "PN-10480", "Head gasket", "gasket", "low_stock", 2},
				{"prt-003", "PN-11207", "Oil filter cartridge", "oil_filter", "in_stock", 40},
				{"prt-004", "PN-11592", "Fuel injector", "fuel_injector", "out_of_stock", 0},
				{"prt-005", "PN-12034", "Relief valve", "relief_valve", "critical_stock", 1},
			},
		},
		{
			sql: `INSERT OR IGNORE INTO work_orders (id, equipment, summary, status) VALUES (?, ?, ?, ?)`,
			args: [][]any{
				{"wo-001", "main_engine", "Replace main bearings after vibration alarm", "closed"},
				{"wo-002", "boiler", "Inspect feedwater line for pressure drop", "open"},
				{"wo-003", "compressor", "Quarterly service: filters and belts", "open"},
			},
		},
		{
			sql: `INSERT OR IGNORE INTO documents (id, title, body) VALUES (?, ?, ?)`,
			args: [][]any{
				{"doc-001", "Main engine cooling system manual", "Troubleshooting overheating: check coolant level, thermostat, and heat exchanger fouling before inspecting the water pump."},
				{"doc-002", "Compressor maintenance guide", "Grinding noise usually indicates bearing wear. Replace bearings in matched sets."},
				{"doc-003", "Spare parts handling procedure", "Parts marked critically low must be reordered within 24 hours."},
			},
		},
	}

	for _, stmt := range stmts {
		for _, args := range stmt.args {
			if _, err := s.db.ExecContext(ctx, stmt.sql, args...); err != nil {
				return eris.Wrap(err, "sqlite: seed")
			}
		}
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

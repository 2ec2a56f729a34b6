package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/plantops/queryengine/internal/db"
	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/planner"
)

// PostgresSource implements Source using pgxpool.
type PostgresSource struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresSource with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresSource, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresSource{pool: pool, closeFn: pool.Close}, nil
}

// capabilityQuery pairs a capability's pre-defined SQL template with the
// object type its rows map to. Every template returns the same shape:
// (id, label, detail, score, mode), with the search term as the only bound
// parameter.
type capabilityQuery struct {
	sql        string
	objectType string
}

var postgresQueries = map[string]capabilityQuery{
	"faults_by_code": {
		objectType: "fault",
		sql: `SELECT id::text, code || ': ' || title, symptom, 1.0, 'exact_id'
FROM faults WHERE upper(code) = upper($1) LIMIT 25`,
	},
	"faults_by_symptom": {
		objectType: "fault",
		sql: `SELECT id::text, code || ': ' || title, symptom,
  CASE WHEN lower(symptom) = lower($1) THEN 1.0 ELSE 0.8 END,
  CASE WHEN lower(symptom) = lower($1) THEN 'exact_canonical' ELSE 'exact_text' END
FROM faults
WHERE symptom ILIKE '%' || $1 || '%' OR title ILIKE '%' || $1 || '%'
ORDER BY 4 DESC, id LIMIT 25`,
	},
	"equipment_by_name": {
		objectType: "equipment",
		sql: `SELECT id::text, name, location,
  CASE WHEN canonical = $1 THEN 1.0 ELSE 0.8 END,
  CASE WHEN canonical = $1 THEN 'exact_canonical' ELSE 'exact_text' END
FROM equipment
WHERE canonical = $1 OR name ILIKE '%' || $1 || '%'
ORDER BY 4 DESC, id LIMIT 25`,
	},
	"equipment_by_location": {
		objectType: "equipment",
		sql: `SELECT id::text, name, location, 0.7, 'exact_text'
FROM equipment WHERE location = $1 OR location ILIKE '%' || $1 || '%'
ORDER BY id LIMIT 25`,
	},
	"parts_by_name": {
		objectType: "part",
		sql: `SELECT id::text, name, part_number,
  CASE WHEN upper(part_number) = upper($1) THEN 1.0
       WHEN canonical = $1 THEN 0.9 ELSE 0.75 END,
  CASE WHEN upper(part_number) = upper($1) THEN 'exact_id'
       WHEN canonical = $1 THEN 'exact_canonical' ELSE 'exact_text' END
FROM parts
WHERE upper(part_number) = upper($1) OR canonical = $1 OR name ILIKE '%' || $1 || '%'
ORDER BY 4 DESC, id LIMIT 25`,
	},
	"parts_by_stock": {
		objectType: "part",
		sql: `SELECT id::text, name, stock_status, 0.8, 'exact_canonical'
FROM parts WHERE stock_status = $1 ORDER BY quantity ASC, id LIMIT 25`,
	},
	"work_orders_by_equipment": {
		objectType: "work_order",
		sql: `SELECT id::text, summary, equipment, 0.75, 'exact_text'
FROM work_orders WHERE equipment = $1 OR summary ILIKE '%' || $1 || '%'
ORDER BY opened_at DESC, id LIMIT 25`,
	},
	"documents_fulltext": {
		objectType: "document",
		sql: `SELECT id::text, title, left(body, 200),
  ts_rank(to_tsvector('english', title || ' ' || body), plainto_tsquery('english', $1)),
  'fuzzy'
FROM documents
WHERE to_tsvector('english', title || ' ' || body) @@ plainto_tsquery('english', $1)
ORDER BY 4 DESC, id LIMIT 25`,
	},
}

// Run executes the capability's template. Unknown capability ids are an
// error: the planner and the query tables must stay in lockstep.
func (s *PostgresSource) Run(ctx context.Context, capability model.Capability, q model.QueryContext) ([]model.Row, error) {
	cq, ok := postgresQueries[capability.ID]
	if !ok {
		return nil, eris.Errorf("postgres: no query template for capability %s", capability.ID)
	}

	term := bindTerm(capability.ID, q)
	rows, err := s.pool.Query(ctx, cq.sql, term)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: run %s", capability.ID)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var id, label, detail, mode string
		var score float64
		if err := rows.Scan(&id, &label, &detail, &score, &mode); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", capability.ID)
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
		return nil, eris.Wrapf(err, "postgres: iterate %s", capability.ID)
	}
	return out, nil
}

// Availability snapshots, per table target, whether the table holds rows.
func (s *PostgresSource) Availability(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, table := range planner.TableTargets() {
		// Table names come from the static planner list, never user input.
		var exists bool
		query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s)`, table)
		if err := s.pool.QueryRow(ctx, query).Scan(&exists); err != nil {
			return nil, eris.Wrapf(err, "postgres: probe %s", table)
		}
		out[table] = exists
	}
	return out, nil
}

const postgresMigration = `
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
	opened_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_faults_code ON faults (upper(code));
CREATE INDEX IF NOT EXISTS idx_equipment_canonical ON equipment (canonical);
CREATE INDEX IF NOT EXISTS idx_parts_stock ON parts (stock_status);
CREATE INDEX IF NOT EXISTS idx_documents_fts ON documents
	USING gin (to_tsvector('english', title || ' ' || body));
`

// Migrate creates the capability tables if missing.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	} else {
		s.pool.Close()
	}
	return nil
}

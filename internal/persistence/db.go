// Package persistence provides SQLite-based flower storage.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexflower/internal/engine"
	"github.com/talgya/hexflower/internal/lattice"
)

// DB wraps a SQLite connection for flower persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY between our own transactions.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flowers (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		radius INTEGER NOT NULL,
		cursor_q INTEGER NOT NULL,
		cursor_r INTEGER NOT NULL,
		metadata_json TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hexes (
		flower_id TEXT NOT NULL REFERENCES flowers(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		content TEXT,
		label TEXT NOT NULL,
		color TEXT,
		PRIMARY KEY (flower_id, q, r)
	);

	CREATE TABLE IF NOT EXISTS history (
		flower_id TEXT NOT NULL REFERENCES flowers(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		from_q INTEGER NOT NULL,
		from_r INTEGER NOT NULL,
		to_q INTEGER NOT NULL,
		to_r INTEGER NOT NULL,
		direction TEXT NOT NULL,
		kind TEXT NOT NULL,
		ts INTEGER NOT NULL,
		PRIMARY KEY (flower_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		kind TEXT NOT NULL,
		flower_id TEXT NOT NULL,
		detail_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flower_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_flower ON events(flower_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type flowerRow struct {
	ID           string `db:"id"`
	Position     int    `db:"position"`
	Name         string `db:"name"`
	Radius       int    `db:"radius"`
	CursorQ      int    `db:"cursor_q"`
	CursorR      int    `db:"cursor_r"`
	MetadataJSON string `db:"metadata_json"`
	SavedAt      int64  `db:"saved_at"`
}

type hexRow struct {
	FlowerID string         `db:"flower_id"`
	Position int            `db:"position"`
	Q        int            `db:"q"`
	R        int            `db:"r"`
	Content  sql.NullString `db:"content"`
	Label    string         `db:"label"`
	Color    sql.NullString `db:"color"`
}

type historyRow struct {
	FlowerID  string `db:"flower_id"`
	Seq       int    `db:"seq"`
	FromQ     int    `db:"from_q"`
	FromR     int    `db:"from_r"`
	ToQ       int    `db:"to_q"`
	ToR       int    `db:"to_r"`
	Direction string `db:"direction"`
	Kind      string `db:"kind"`
	TS        int64  `db:"ts"`
}

// Save writes all flowers to the database (full replace).
func (db *DB) Save(ctx context.Context, flowers []engine.Snapshot) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"history", "hexes", "flowers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	now := time.Now().UTC().UnixMilli()
	for i, f := range flowers {
		metaJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata %s: %w", f.ID, err)
		}

		_, err = tx.NamedExecContext(ctx, `INSERT INTO flowers
			(id, position, name, radius, cursor_q, cursor_r, metadata_json, saved_at)
			VALUES (:id, :position, :name, :radius, :cursor_q, :cursor_r, :metadata_json, :saved_at)`,
			flowerRow{
				ID:           f.ID,
				Position:     i,
				Name:         f.Name,
				Radius:       f.Radius,
				CursorQ:      f.CurrentPosition.Q,
				CursorR:      f.CurrentPosition.R,
				MetadataJSON: string(metaJSON),
				SavedAt:      now,
			})
		if err != nil {
			return fmt.Errorf("insert flower %s: %w", f.ID, err)
		}

		if err := insertHexes(ctx, tx, f); err != nil {
			return err
		}
		if err := insertHistory(ctx, tx, f); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertHexes(ctx context.Context, tx *sqlx.Tx, f engine.Snapshot) error {
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO hexes
		(flower_id, position, q, r, content, label, color)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, h := range f.Hexes {
		_, err := stmt.ExecContext(ctx, f.ID, i, h.Q, h.R, nullable(h.Content), h.Label, nullable(h.Color))
		if err != nil {
			return fmt.Errorf("insert hex %s (%d,%d): %w", f.ID, h.Q, h.R, err)
		}
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, f engine.Snapshot) error {
	if len(f.History) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO history
		(flower_id, seq, from_q, from_r, to_q, to_r, direction, kind, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, h := range f.History {
		kind := h.Type
		if kind == "" {
			kind = lattice.KindMove
		}
		_, err := stmt.ExecContext(ctx, f.ID, i,
			h.From.Q, h.From.R, h.To.Q, h.To.R,
			string(h.Direction), string(kind), int64(h.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert history %s #%d: %w", f.ID, i, err)
		}
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func optional(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Load reads every stored flower in saved order.
func (db *DB) Load(ctx context.Context) ([]engine.Snapshot, error) {
	var rows []flowerRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM flowers ORDER BY position"); err != nil {
		return nil, fmt.Errorf("select flowers: %w", err)
	}

	var hexes []hexRow
	if err := db.conn.SelectContext(ctx, &hexes, "SELECT * FROM hexes ORDER BY flower_id, position"); err != nil {
		return nil, fmt.Errorf("select hexes: %w", err)
	}
	var history []historyRow
	if err := db.conn.SelectContext(ctx, &history, "SELECT * FROM history ORDER BY flower_id, seq"); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	hexesBy := make(map[string][]engine.HexSnapshot)
	for _, h := range hexes {
		hexesBy[h.FlowerID] = append(hexesBy[h.FlowerID], engine.HexSnapshot{
			Q:       h.Q,
			R:       h.R,
			S:       -h.Q - h.R,
			Content: optional(h.Content),
			Label:   h.Label,
			Color:   optional(h.Color),
		})
	}
	historyBy := make(map[string][]engine.HistorySnapshot)
	for _, h := range history {
		historyBy[h.FlowerID] = append(historyBy[h.FlowerID], engine.HistorySnapshot{
			From:      lattice.Coord{Q: h.FromQ, R: h.FromR},
			To:        lattice.Coord{Q: h.ToQ, R: h.ToR},
			Direction: lattice.Direction(h.Direction),
			Type:      lattice.Kind(h.Kind),
			Timestamp: engine.Millis(h.TS),
		})
	}

	out := make([]engine.Snapshot, 0, len(rows))
	for _, r := range rows {
		var meta map[string]any
		if err := json.Unmarshal([]byte(r.MetadataJSON), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", r.ID, err)
		}
		out = append(out, engine.Snapshot{
			ID:              r.ID,
			Name:            r.Name,
			Radius:          r.Radius,
			Hexes:           hexesBy[r.ID],
			Metadata:        meta,
			CurrentPosition: lattice.Coord{Q: r.CursorQ, R: r.CursorR},
			History:         historyBy[r.ID],
		})
	}
	slog.Debug("flowers read from db", "count", len(out))
	return out, nil
}

// MetaBoundary is the meta key holding the boundary policy chosen at runtime.
const MetaBoundary = "boundary"

// SaveMeta stores a key-value pair in flower metadata.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO flower_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// ErrNoMeta is returned by GetMeta for unknown keys.
var ErrNoMeta = errors.New("meta key not set")

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM flower_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoMeta
	}
	return value, err
}

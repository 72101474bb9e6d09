package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/hexflower/internal/engine"
)

// EventRecord is one row of the event log.
type EventRecord struct {
	ID         int64           `db:"id" json:"id"`
	TS         int64           `db:"ts" json:"ts"`
	Kind       string          `db:"kind" json:"kind"`
	FlowerID   string          `db:"flower_id" json:"flower_id"`
	DetailJSON string          `db:"detail_json" json:"-"`
	Detail     json.RawMessage `db:"-" json:"detail"`
}

// Time returns the record timestamp.
func (r EventRecord) Time() time.Time {
	return time.UnixMilli(r.TS).UTC()
}

// eventDetail is the part of an engine event worth keeping. The full
// flower copy is left out; the flowers tables already hold it.
type eventDetail struct {
	Name   string                   `json:"name,omitempty"`
	Cell   any                      `json:"cell,omitempty"`
	Result *engine.NavigationResult `json:"result,omitempty"`
}

// Notify appends an engine event to the log. It satisfies engine.Observer.
func (db *DB) Notify(ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.InsertEvent(ctx, ev); err != nil {
		slog.Error("failed to log event", "kind", ev.Kind, "flower", ev.FlowerID, "error", err)
	}
}

// InsertEvent writes one engine event to the log.
func (db *DB) InsertEvent(ctx context.Context, ev engine.Event) error {
	detail := eventDetail{Result: ev.Result}
	if ev.Flower != nil {
		detail.Name = ev.Flower.Name
	}
	if ev.Cell != nil {
		detail.Cell = ev.Cell
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode event detail: %w", err)
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO events (ts, kind, flower_id, detail_json) VALUES (?, ?, ?, ?)",
		ts.UTC().UnixMilli(), string(ev.Kind), ev.FlowerID, string(raw),
	)
	return err
}

// RecentEvents returns the most recent events, newest first. An empty
// flowerID returns events for every flower.
func (db *DB) RecentEvents(ctx context.Context, flowerID string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		records []EventRecord
		err     error
	)
	if flowerID == "" {
		err = db.conn.SelectContext(ctx, &records,
			"SELECT id, ts, kind, flower_id, detail_json FROM events ORDER BY id DESC LIMIT ?", limit)
	} else {
		err = db.conn.SelectContext(ctx, &records,
			"SELECT id, ts, kind, flower_id, detail_json FROM events WHERE flower_id = ? ORDER BY id DESC LIMIT ?",
			flowerID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	for i := range records {
		records[i].Detail = json.RawMessage(records[i].DetailJSON)
	}
	return records, nil
}

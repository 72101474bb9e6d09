package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/talgya/hexflower/internal/errors"
	"github.com/talgya/hexflower/internal/lattice"
)

// Snapshot is the portable structural copy of one flower.
type Snapshot struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Radius          int               `json:"radius"`
	Hexes           []HexSnapshot     `json:"hexes"`
	Metadata        map[string]any    `json:"metadata"`
	CurrentPosition lattice.Coord     `json:"currentPosition"`
	History         []HistorySnapshot `json:"history"`
}

// HexSnapshot is one exported cell. Unset content and color are null.
type HexSnapshot struct {
	Q       int     `json:"q"`
	R       int     `json:"r"`
	S       int     `json:"s"`
	Content *string `json:"content"`
	Label   string  `json:"label"`
	Color   *string `json:"color"`
}

// HistorySnapshot is one exported history entry. A missing type means a move.
type HistorySnapshot struct {
	From      lattice.Coord     `json:"from"`
	To        lattice.Coord     `json:"to"`
	Direction lattice.Direction `json:"direction"`
	Type      lattice.Kind      `json:"type,omitempty"`
	Timestamp Millis            `json:"timestamp"`
}

// Millis is a timestamp encoded as Unix milliseconds. It also decodes
// RFC 3339 strings.
type Millis int64

// MarshalJSON encodes the timestamp as a number.
func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(m), 10)), nil
}

// UnmarshalJSON accepts a number of milliseconds or an RFC 3339 string.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*m = Millis(t.UnixMilli())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Millis(int64(f))
	return nil
}

// Time converts to a UTC time.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// NewSnapshot copies a lattice into its portable form.
func NewSnapshot(l *lattice.Lattice) Snapshot {
	snap := Snapshot{
		ID:              l.ID,
		Name:            l.Name,
		Radius:          l.Radius,
		Hexes:           make([]HexSnapshot, 0, len(l.Cells)),
		Metadata:        lattice.CloneMetadata(l.Metadata),
		CurrentPosition: l.Cursor,
		History:         make([]HistorySnapshot, 0, len(l.History)),
	}
	for _, c := range l.Cells {
		snap.Hexes = append(snap.Hexes, HexSnapshot{
			Q:       c.Coord.Q,
			R:       c.Coord.R,
			S:       c.Coord.S(),
			Content: optional(c.Content),
			Label:   c.Label,
			Color:   optional(c.Color),
		})
	}
	for _, h := range l.History {
		snap.History = append(snap.History, HistorySnapshot{
			From:      h.From,
			To:        h.To,
			Direction: h.Direction,
			Type:      h.Kind,
			Timestamp: Millis(h.Time.UnixMilli()),
		})
	}
	return snap
}

func snapshotPtr(l *lattice.Lattice) *Snapshot {
	snap := NewSnapshot(l)
	return &snap
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toLattice rebuilds a lattice from the snapshot under the given id.
// Cells are regenerated from the radius; exported payloads are laid over
// them. maxRadius 0 means no upper bound.
func (s Snapshot) toLattice(id string, minRadius, maxRadius int) (*lattice.Lattice, error) {
	if s.Radius < minRadius || (maxRadius > 0 && s.Radius > maxRadius) {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidParameter,
			fmt.Sprintf("snapshot radius %d outside accepted range", s.Radius),
			map[string]string{"radius": strconv.Itoa(s.Radius)})
	}
	name := s.Name
	if name == "" {
		name = DefaultName
	}
	l, err := lattice.New(id, name, s.Radius, lattice.CloneMetadata(s.Metadata))
	if err != nil {
		return nil, err
	}

	for _, h := range s.Hexes {
		coord := lattice.Coord{Q: h.Q, R: h.R}
		cell := l.Get(coord)
		if cell == nil {
			return nil, invalidSnapshot(fmt.Sprintf("hex %s outside radius %d", coord, s.Radius))
		}
		cell.Content = deref(h.Content)
		cell.Label = h.Label
		cell.Color = deref(h.Color)
	}

	if !l.Contains(s.CurrentPosition) {
		return nil, invalidSnapshot(fmt.Sprintf("current position %s outside radius %d", s.CurrentPosition, s.Radius))
	}
	l.Cursor = s.CurrentPosition

	for i, h := range s.History {
		kind := h.Type
		if kind == "" {
			kind = lattice.KindMove
		}
		if kind != lattice.KindMove && kind != lattice.KindWrap {
			return nil, invalidSnapshot(fmt.Sprintf("history entry %d has unknown type %q", i, h.Type))
		}
		if !h.Direction.Valid() {
			return nil, invalidSnapshot(fmt.Sprintf("history entry %d has unknown direction %q", i, h.Direction))
		}
		if !l.Contains(h.From) || !l.Contains(h.To) {
			return nil, invalidSnapshot(fmt.Sprintf("history entry %d moves %s -> %s outside radius %d", i, h.From, h.To, s.Radius))
		}
		l.History = append(l.History, lattice.HistoryEntry{
			From:      h.From,
			To:        h.To,
			Direction: h.Direction,
			Kind:      kind,
			Time:      h.Timestamp.Time(),
		})
	}
	return l, nil
}

func invalidSnapshot(msg string) error {
	return apperrors.New(apperrors.CodeInvalidParameter, msg)
}

// ParseSnapshot decodes a serialized snapshot. Malformed input yields a
// PARSE_ERROR.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeParseError, "decode snapshot", err)
	}
	return snap, nil
}

// ExportSnapshot returns the structural copy of a flower.
func (e *Engine) ExportSnapshot(id string) (Snapshot, bool) {
	f := e.lookup(id)
	if f == nil {
		return Snapshot{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return NewSnapshot(f.lat), true
}

// ExportJSON returns the flower's snapshot as indented JSON.
func (e *Engine) ExportJSON(id string) ([]byte, bool, error) {
	snap, ok := e.ExportSnapshot(id)
	if !ok {
		return nil, false, nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, true, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, true, nil
}

// ImportSnapshot parses a serialized flower and registers it under a new
// identifier. On any error the engine is left unchanged.
func (e *Engine) ImportSnapshot(ctx context.Context, data []byte) (*lattice.Lattice, error) {
	snap, err := ParseSnapshot(data)
	if err != nil {
		return nil, err
	}
	return e.Import(ctx, snap)
}

// Import registers an already decoded snapshot under a new identifier.
func (e *Engine) Import(ctx context.Context, snap Snapshot) (*lattice.Lattice, error) {
	lat, err := snap.toLattice(e.newID(), e.minRadius, e.maxRadius)
	if err != nil {
		return nil, err
	}

	out := e.register(lat)
	slog.Info("flower imported", "flower", lat.ID, "source_id", snap.ID, "radius", lat.Radius)
	e.persist(ctx)
	e.emit(Event{Kind: EventImported, FlowerID: lat.ID, Flower: snapshotPtr(out)})
	return out, nil
}

package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/hexflower/internal/lattice"
)

// CurrentCell returns a copy of the cell under the flower's cursor.
func (e *Engine) CurrentCell(id string) (lattice.Cell, bool) {
	f := e.lookup(id)
	if f == nil {
		return lattice.Cell{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.lat.Current(), true
}

// SetCellContent overwrites the non-empty payload fields of one cell.
// Unknown flowers or cells are ignored; the return value reports whether
// anything was applied.
func (e *Engine) SetCellContent(ctx context.Context, id string, coord lattice.Coord, p lattice.Payload) bool {
	f := e.lookup(id)
	if f == nil || p.Empty() {
		return false
	}

	f.mu.Lock()
	cell := f.lat.Get(coord)
	if f.deleted || cell == nil {
		f.mu.Unlock()
		return false
	}
	cell.Apply(p)
	updated := *cell
	snap := snapshotPtr(f.lat)
	f.mu.Unlock()

	slog.Debug("cell content updated", "flower", id, "cell", coord)
	e.persist(ctx)
	e.emit(Event{Kind: EventContentUpdated, FlowerID: id, Flower: snap, Cell: &updated})
	return true
}

// Reset moves the cursor back to the center and clears the history.
// Unknown flowers are ignored.
func (e *Engine) Reset(ctx context.Context, id string) bool {
	f := e.lookup(id)
	if f == nil {
		return false
	}

	f.mu.Lock()
	if f.deleted {
		f.mu.Unlock()
		return false
	}
	f.lat.Reset()
	center := *f.lat.Current()
	snap := snapshotPtr(f.lat)
	f.mu.Unlock()

	slog.Info("flower reset", "flower", id)
	e.persist(ctx)
	e.emit(Event{Kind: EventReset, FlowerID: id, Flower: snap, Cell: &center})
	return true
}

package lattice

import (
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/talgya/hexflower/internal/errors"
)

// Lattice holds one Hex Flower: its cells, cursor and movement history.
type Lattice struct {
	ID       string
	Name     string
	Radius   int
	Cells    []*Cell // Build order; used for stable export
	Metadata map[string]any
	Cursor   Coord
	History  []HistoryEntry

	index map[Coord]*Cell
}

// Build returns every cell within radius of the center, each with an empty payload.
// Cells are ordered by q, then r.
func Build(radius int) ([]*Cell, error) {
	if radius < 1 {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidParameter,
			fmt.Sprintf("radius %d must be at least 1", radius),
			map[string]string{"radius": strconv.Itoa(radius)})
	}

	cells := make([]*Cell, 0, CellCount(radius))
	for q := -radius; q <= radius; q++ {
		rMin := max(-radius, -q-radius)
		rMax := min(radius, -q+radius)
		for r := rMin; r <= rMax; r++ {
			cells = append(cells, &Cell{Coord: Coord{Q: q, R: r}})
		}
	}
	return cells, nil
}

// CellCount returns the number of cells in a lattice of the given radius.
func CellCount(radius int) int {
	return 3*radius*radius + 3*radius + 1
}

// New builds a lattice with its cursor on the center and an empty history.
func New(id, name string, radius int, metadata map[string]any) (*Lattice, error) {
	cells, err := Build(radius)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	l := &Lattice{
		ID:       id,
		Name:     name,
		Radius:   radius,
		Cells:    cells,
		Metadata: metadata,
		Cursor:   Center,
	}
	l.reindex()
	return l, nil
}

func (l *Lattice) reindex() {
	l.index = make(map[Coord]*Cell, len(l.Cells))
	for _, c := range l.Cells {
		l.index[c.Coord] = c
	}
}

// Get returns the cell at the given coordinate, or nil if absent.
func (l *Lattice) Get(coord Coord) *Cell {
	return l.index[coord]
}

// Contains reports whether the lattice has a cell at coord.
func (l *Lattice) Contains(coord Coord) bool {
	_, ok := l.index[coord]
	return ok
}

// InBounds returns true if the coordinate is within the lattice radius.
// A pruned lattice may still lack cells at in-bounds coordinates.
func (l *Lattice) InBounds(coord Coord) bool {
	return Distance(Center, coord) <= l.Radius
}

// Current returns the cell under the cursor.
func (l *Lattice) Current() *Cell {
	return l.index[l.Cursor]
}

// MoveTo sets the cursor and appends a history entry.
func (l *Lattice) MoveTo(to Coord, dir Direction, kind Kind, at time.Time) {
	l.History = append(l.History, HistoryEntry{
		From:      l.Cursor,
		To:        to,
		Direction: dir,
		Kind:      kind,
		Time:      at,
	})
	l.Cursor = to
}

// Reset returns the cursor to the center and clears the history.
func (l *Lattice) Reset() {
	l.Cursor = Center
	l.History = nil
}

// Prune removes the cell at coord, producing a non-hexagonal shape.
// The center and the cell under the cursor cannot be pruned.
func (l *Lattice) Prune(coord Coord) bool {
	if coord == Center || coord == l.Cursor || !l.Contains(coord) {
		return false
	}
	delete(l.index, coord)
	kept := l.Cells[:0]
	for _, c := range l.Cells {
		if c.Coord != coord {
			kept = append(kept, c)
		}
	}
	l.Cells = kept
	return true
}

// Clone returns a deep copy of the lattice.
func (l *Lattice) Clone() *Lattice {
	out := &Lattice{
		ID:       l.ID,
		Name:     l.Name,
		Radius:   l.Radius,
		Cells:    make([]*Cell, len(l.Cells)),
		Metadata: CloneMetadata(l.Metadata),
		Cursor:   l.Cursor,
		History:  append([]HistoryEntry(nil), l.History...),
	}
	for i, c := range l.Cells {
		cell := *c
		out.Cells[i] = &cell
	}
	out.reindex()
	return out
}

func (l *Lattice) String() string {
	return fmt.Sprintf("Lattice(id=%s, radius=%d, cells=%d, cursor=%s)", l.ID, l.Radius, len(l.Cells), l.Cursor)
}

// CloneMetadata copies a metadata map, including nested maps. A nil map
// stays nil.
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = CloneMetadata(vv)
		case []any:
			out[k] = append([]any(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}

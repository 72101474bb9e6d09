package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexflower/internal/lattice"
)

func TestSetCellContentIsPartial(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 2)
	coord := lattice.Coord{Q: 1, R: -1}

	require.True(t, f.eng.SetCellContent(context.Background(), id, coord, lattice.Payload{
		Content: "Light drizzle",
		Label:   "Rain",
		Color:   "#5dade2",
	}))
	require.True(t, f.eng.SetCellContent(context.Background(), id, coord, lattice.Payload{Label: "X"}))
	require.True(t, f.eng.SetCellContent(context.Background(), id, coord, lattice.Payload{Label: "X"}))

	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Cell{Coord: coord, Content: "Light drizzle", Label: "X", Color: "#5dade2"}, *lat.Get(coord))

	ev := f.events.Last()
	assert.Equal(t, EventContentUpdated, ev.Kind)
	require.NotNil(t, ev.Cell)
	assert.Equal(t, "X", ev.Cell.Label)
	assert.Equal(t, 4, f.store.Saves())
}

func TestSetCellContentForgivesUnknownTargets(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 1)
	saves := f.store.Saves()

	assert.False(t, f.eng.SetCellContent(context.Background(), "missing", lattice.Center, lattice.Payload{Label: "X"}))
	assert.False(t, f.eng.SetCellContent(context.Background(), id, lattice.Coord{Q: 4, R: 4}, lattice.Payload{Label: "X"}))
	assert.False(t, f.eng.SetCellContent(context.Background(), id, lattice.Center, lattice.Payload{}))

	assert.Equal(t, []EventKind{EventCreated}, f.events.Kinds())
	assert.Equal(t, saves, f.store.Saves())
}

func TestCurrentCell(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 2)
	f.eng.SetCellContent(context.Background(), id, lattice.Coord{Q: 0, R: 1}, lattice.Payload{Label: "Fog"})

	_, err := f.eng.NavigateTotal(context.Background(), id, 6)
	require.NoError(t, err)

	cell, ok := f.eng.CurrentCell(id)
	require.True(t, ok)
	assert.Equal(t, "Fog", cell.Label)

	_, ok = f.eng.CurrentCell("missing")
	assert.False(t, ok)
}

func TestResetClearsState(t *testing.T) {
	f := newFixture(t, Wrapping)
	id := f.create(t, 1)
	for _, total := range []int{12, 12, 5} {
		_, err := f.eng.NavigateTotal(context.Background(), id, total)
		require.NoError(t, err)
	}

	assert.True(t, f.eng.Reset(context.Background(), id))

	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Center, lat.Cursor)
	assert.Empty(t, lat.History)
	ev := f.events.Last()
	assert.Equal(t, EventReset, ev.Kind)
	require.NotNil(t, ev.Cell)
	assert.Equal(t, lattice.Center, ev.Cell.Coord)

	// Resetting a fresh flower is harmless.
	assert.True(t, f.eng.Reset(context.Background(), id))
	lat, _ = f.eng.Get(id)
	assert.Empty(t, lat.History)
}

func TestResetUnknownIsNoop(t *testing.T) {
	f := newFixture(t, Bounded)
	f.create(t, 1)
	saves := f.store.Saves()

	assert.False(t, f.eng.Reset(context.Background(), "missing"))
	assert.Equal(t, []EventKind{EventCreated}, f.events.Kinds())
	assert.Equal(t, saves, f.store.Saves())
}

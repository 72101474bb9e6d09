package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/talgya/hexflower/internal/errors"
	"github.com/talgya/hexflower/internal/lattice"
)

func TestResolveDirection(t *testing.T) {
	f := newFixture(t, Bounded)

	dir, err := f.eng.ResolveDirection(7)
	require.NoError(t, err)
	assert.Equal(t, lattice.South, dir)

	_, err = f.eng.ResolveDirection(13)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestNavigateTotalMovesSouth(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 2)

	res, err := f.eng.NavigateTotal(context.Background(), id, 7)
	require.NoError(t, err)

	assert.Equal(t, lattice.South, res.Direction)
	assert.Equal(t, lattice.Center, res.From)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, res.To)
	assert.Equal(t, lattice.KindMove, res.Kind)
	assert.False(t, res.Blocked)
	assert.False(t, res.Wrapped)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, res.Cell.Coord)
	assert.Equal(t, 7, res.Roll.Total)
	assert.Empty(t, res.Roll.Dice)

	lat, ok := f.eng.Get(id)
	require.True(t, ok)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, lat.Cursor)
	require.Len(t, lat.History, 1)
	entry := lat.History[0]
	assert.Equal(t, lattice.Center, entry.From)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, entry.To)
	assert.Equal(t, lattice.South, entry.Direction)
	assert.Equal(t, lattice.KindMove, entry.Kind)
	assert.False(t, entry.Time.IsZero())

	assert.Equal(t, []EventKind{EventCreated, EventNavigated}, f.events.Kinds())
	ev := f.events.Last()
	require.NotNil(t, ev.Result)
	assert.Equal(t, res.To, ev.Result.To)
	require.NotNil(t, ev.Cell)
	assert.Equal(t, res.To, ev.Cell.Coord)
	assert.Equal(t, 2, f.store.Saves())
}

func TestNavigateTotalNeverRolls(t *testing.T) {
	f := newFixture(t, Bounded, 12)
	id := f.create(t, 3)

	for total := lattice.MinRoll; total <= lattice.MaxRoll; total++ {
		_, err := f.eng.NavigateTotal(context.Background(), id, total)
		require.NoError(t, err)
	}
	assert.Zero(t, f.roller.Calls())
}

func TestNavigateUsesRoller(t *testing.T) {
	f := newFixture(t, Bounded, 4)
	id := f.create(t, 2)

	res, err := f.eng.Navigate(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 1, f.roller.Calls())
	assert.Equal(t, 4, res.Roll.Total)
	assert.Len(t, res.Roll.Dice, 2)
	assert.Equal(t, lattice.SouthEast, res.Direction)
	assert.Equal(t, lattice.Coord{Q: 1, R: 0}, res.To)
}

func TestNavigateFromCenterAlwaysLands(t *testing.T) {
	for radius := 1; radius <= 3; radius++ {
		for total := lattice.MinRoll; total <= lattice.MaxRoll; total++ {
			f := newFixture(t, Bounded)
			id := f.create(t, radius)

			res, err := f.eng.NavigateTotal(context.Background(), id, total)
			require.NoError(t, err)
			assert.False(t, res.Blocked, "radius %d total %d", radius, total)
			assert.False(t, res.Wrapped, "radius %d total %d", radius, total)
			assert.Equal(t, 1, lattice.Distance(lattice.Center, res.To))
		}
	}
}

func TestNavigateBoundedBlocksAtEdge(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 1)

	_, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)
	savesBefore := f.store.Saves()
	eventsBefore := len(f.events.Kinds())

	res, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)

	assert.True(t, res.Blocked)
	assert.False(t, res.Wrapped)
	assert.Empty(t, res.Kind)
	assert.Equal(t, lattice.Coord{Q: 0, R: -2}, res.Target)
	assert.Equal(t, lattice.Coord{Q: 0, R: -1}, res.To)
	assert.Equal(t, lattice.Coord{Q: 0, R: -1}, res.Cell.Coord)

	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Coord{Q: 0, R: -1}, lat.Cursor)
	assert.Len(t, lat.History, 1)
	assert.Equal(t, savesBefore, f.store.Saves())
	assert.Len(t, f.events.Kinds(), eventsBefore)
}

func TestNavigateWrappingJumpsToAntipode(t *testing.T) {
	f := newFixture(t, Wrapping)
	id := f.create(t, 1)

	_, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)

	res, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)

	assert.True(t, res.Wrapped)
	assert.False(t, res.Blocked)
	assert.Equal(t, lattice.KindWrap, res.Kind)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, res.To)

	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, lat.Cursor)
	require.Len(t, lat.History, 2)
	wrap := lat.History[1]
	assert.Equal(t, lattice.KindWrap, wrap.Kind)
	assert.Equal(t, lattice.Coord{Q: 0, R: -1}, wrap.From)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, wrap.To)
	assert.Equal(t, lattice.North, wrap.Direction)
}

func TestNavigateWrappingReflectsCurrentNotTarget(t *testing.T) {
	f := newFixture(t, Wrapping)
	id := f.create(t, 2)

	// (0,0) → (1,0) → (2,0); NE from (2,0) leaves the lattice at (3,-1).
	for _, total := range []int{4, 4} {
		_, err := f.eng.NavigateTotal(context.Background(), id, total)
		require.NoError(t, err)
	}
	res, err := f.eng.NavigateTotal(context.Background(), id, 2)
	require.NoError(t, err)

	assert.Equal(t, lattice.Coord{Q: 3, R: -1}, res.Target)
	assert.Equal(t, lattice.Coord{Q: -2, R: 0}, res.To)
	assert.True(t, res.Wrapped)
}

func TestNavigateWrappingFallsBackWhenAntipodeMissing(t *testing.T) {
	f := newFixture(t, Wrapping)
	id := f.create(t, 1)

	_, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)

	fl := f.eng.lookup(id)
	fl.mu.Lock()
	require.True(t, fl.lat.Prune(lattice.Coord{Q: 0, R: 1}))
	fl.mu.Unlock()

	res, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)

	assert.True(t, res.Blocked)
	assert.False(t, res.Wrapped)
	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Coord{Q: 0, R: -1}, lat.Cursor)
	assert.Len(t, lat.History, 1)
}

func TestNavigateUnknownFlower(t *testing.T) {
	f := newFixture(t, Bounded, 7)

	_, err := f.eng.Navigate(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, f.roller.Calls())

	_, err = f.eng.NavigateTotal(context.Background(), "missing", 7)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNavigateTotalOutOfRange(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 2)

	for _, total := range []int{0, 1, 13} {
		_, err := f.eng.NavigateTotal(context.Background(), id, total)
		if !errors.Is(err, apperrors.ErrInvalidParameter) {
			t.Fatalf("NavigateTotal(%d) error = %v, want invalid parameter", total, err)
		}
	}
	lat, _ := f.eng.Get(id)
	assert.Empty(t, lat.History)
}

func TestNavigateRollerFailure(t *testing.T) {
	f := newFixture(t, Bounded) // no scripted rolls
	id := f.create(t, 2)

	_, err := f.eng.Navigate(context.Background(), id)
	require.Error(t, err)
	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Center, lat.Cursor)
}

func TestPreviewDoesNotMutate(t *testing.T) {
	f := newFixture(t, Wrapping)
	id := f.create(t, 1)
	_, err := f.eng.NavigateTotal(context.Background(), id, 12)
	require.NoError(t, err)
	saves := f.store.Saves()

	res, err := f.eng.Preview(id, 12)
	require.NoError(t, err)
	assert.True(t, res.Wrapped)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, res.To)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, res.Cell.Coord)

	lat, _ := f.eng.Get(id)
	assert.Equal(t, lattice.Coord{Q: 0, R: -1}, lat.Cursor)
	assert.Len(t, lat.History, 1)
	assert.Equal(t, saves, f.store.Saves())

	_, err = f.eng.Preview("missing", 7)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.eng.Preview(id, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestNavigateSerializesPerFlower(t *testing.T) {
	f := newFixture(t, Wrapping)
	id := f.create(t, 2)

	const workers, moves = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < moves; i++ {
				_, err := f.eng.NavigateTotal(context.Background(), id, 2+(w+i)%11)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	lat, _ := f.eng.Get(id)
	require.Len(t, lat.History, workers*moves)
	for i := 1; i < len(lat.History); i++ {
		assert.Equal(t, lat.History[i-1].To, lat.History[i].From, "history must chain")
	}
	assert.Equal(t, lat.History[len(lat.History)-1].To, lat.Cursor)
	assert.True(t, lat.Contains(lat.Cursor))
}

package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/hexflower/internal/entropy"
	"github.com/talgya/hexflower/internal/lattice"
)

// Policy decides what happens when a move would leave the lattice.
type Policy string

const (
	// Bounded keeps the cursor in place and reports the move as blocked.
	Bounded Policy = "bounded"
	// Wrapping jumps to the antipode of the current cell.
	Wrapping Policy = "wrapping"
)

// Valid reports whether p is a known policy. The empty policy means Bounded.
func (p Policy) Valid() bool {
	return p == "" || p == Bounded || p == Wrapping
}

// NavigationResult describes one navigation step.
type NavigationResult struct {
	FlowerID  string            `json:"flower_id"`
	Roll      entropy.Roll      `json:"roll"`
	Direction lattice.Direction `json:"direction"`
	From      lattice.Coord     `json:"from"`
	Target    lattice.Coord     `json:"target"` // Destination before boundary handling
	To        lattice.Coord     `json:"to"`     // Cursor after the step
	Kind      lattice.Kind      `json:"kind,omitempty"`
	Blocked   bool              `json:"blocked"`
	Wrapped   bool              `json:"wrapped"`
	Cell      lattice.Cell      `json:"cell"`
}

// ResolveDirection maps a roll total in [2,12] to its direction.
func (e *Engine) ResolveDirection(total int) (lattice.Direction, error) {
	return lattice.ResolveDirection(total)
}

// Navigate rolls two dice and moves the flower's cursor.
func (e *Engine) Navigate(ctx context.Context, id string) (NavigationResult, error) {
	if e.lookup(id) == nil {
		return NavigationResult{}, notFound(id)
	}
	roll, err := e.roller.Roll(ctx)
	if err != nil {
		return NavigationResult{}, fmt.Errorf("roll dice: %w", err)
	}
	return e.navigate(ctx, id, roll)
}

// NavigateTotal moves the flower's cursor using a caller-supplied total.
// The roll provider is not consulted.
func (e *Engine) NavigateTotal(ctx context.Context, id string, total int) (NavigationResult, error) {
	return e.navigate(ctx, id, entropy.Roll{Total: total})
}

func (e *Engine) navigate(ctx context.Context, id string, roll entropy.Roll) (NavigationResult, error) {
	dir, err := lattice.ResolveDirection(roll.Total)
	if err != nil {
		return NavigationResult{}, err
	}
	f := e.lookup(id)
	if f == nil {
		return NavigationResult{}, notFound(id)
	}
	return e.navigateFlower(ctx, id, f, dir, roll)
}

func (e *Engine) navigateFlower(ctx context.Context, id string, f *flower, dir lattice.Direction, roll entropy.Roll) (NavigationResult, error) {
	policy := e.Boundary()

	f.mu.Lock()
	if f.deleted {
		f.mu.Unlock()
		return NavigationResult{}, notFound(id)
	}
	res := step(f.lat, dir, policy)
	// A pruned lattice can block inside the radius.
	inRadius := f.lat.InBounds(res.Target)
	if !res.Blocked {
		f.lat.MoveTo(res.To, dir, res.Kind, e.now())
	}
	res.FlowerID = id
	res.Roll = roll
	res.Cell = *f.lat.Current()
	var snap *Snapshot
	if !res.Blocked {
		snap = snapshotPtr(f.lat)
	}
	f.mu.Unlock()

	slog.Debug("flower navigated",
		"flower", id,
		"roll", roll.Total,
		"direction", dir,
		"from", res.From,
		"to", res.To,
		"blocked", res.Blocked,
		"wrapped", res.Wrapped,
		"target_in_radius", inRadius,
	)
	if res.Blocked {
		return res, nil
	}

	e.persist(ctx)
	cell := res.Cell
	result := res
	e.emit(Event{Kind: EventNavigated, FlowerID: id, Flower: snap, Cell: &cell, Result: &result})
	return res, nil
}

// Preview reports what navigating with total would do, without changing state.
func (e *Engine) Preview(id string, total int) (NavigationResult, error) {
	dir, err := lattice.ResolveDirection(total)
	if err != nil {
		return NavigationResult{}, err
	}
	f := e.lookup(id)
	if f == nil {
		return NavigationResult{}, notFound(id)
	}
	policy := e.Boundary()

	f.mu.Lock()
	defer f.mu.Unlock()
	res := step(f.lat, dir, policy)
	res.FlowerID = id
	res.Roll = entropy.Roll{Total: total}
	res.Cell = *f.lat.Get(res.To)
	return res, nil
}

// step computes the outcome of moving in dir under policy. It does not
// mutate the lattice.
func step(l *lattice.Lattice, dir lattice.Direction, policy Policy) NavigationResult {
	from := l.Cursor
	target := from.Add(dir.Delta())
	res := NavigationResult{
		Direction: dir,
		From:      from,
		Target:    target,
		To:        from,
	}

	if l.Contains(target) {
		res.To = target
		res.Kind = lattice.KindMove
		return res
	}

	if policy == Wrapping {
		// Reflect the current cell, not the failed destination.
		antipode := from.Antipode()
		if l.Contains(antipode) {
			res.To = antipode
			res.Kind = lattice.KindWrap
			res.Wrapped = true
			return res
		}
	}

	res.Blocked = true
	return res
}

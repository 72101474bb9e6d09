package entropy

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

// Seeded rolls from a math/rand source seeded once. Given the same seed
// it produces the same sequence of rolls.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded creates a deterministic roller.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewSource(seed))}
}

// Roll implements the two-die roll provider.
func (s *Seeded) Roll(context.Context) (Roll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewRoll(s.rng.Intn(6)+1, s.rng.Intn(6)+1), nil
}

// ErrNoScriptedRolls is returned by an empty Fixed roller.
var ErrNoScriptedRolls = errors.New("no scripted roll totals")

// Fixed replays a scripted sequence of totals, cycling when exhausted,
// and counts how often it was asked.
type Fixed struct {
	mu     sync.Mutex
	totals []int
	calls  int
}

// NewFixed creates a roller that returns the given totals in order.
func NewFixed(totals ...int) *Fixed {
	return &Fixed{totals: totals}
}

// Roll implements the two-die roll provider. The faces are split so they
// sum to the scripted total.
func (f *Fixed) Roll(context.Context) (Roll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.totals) == 0 {
		return Roll{}, ErrNoScriptedRolls
	}
	total := f.totals[f.calls%len(f.totals)]
	f.calls++
	a := min(max(total-1, 1), 6)
	return Roll{Dice: []int{a, total - a}, Total: total}, nil
}

// Calls returns how many rolls were drawn.
func (f *Fixed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

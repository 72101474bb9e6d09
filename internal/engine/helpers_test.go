package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talgya/hexflower/internal/entropy"
)

// memStore is an in-memory Store that records every save.
type memStore struct {
	mu      sync.Mutex
	loaded  []Snapshot
	saves   int
	last    []Snapshot
	saveErr error
	ctxErrs []error // ctx.Err() observed at each save
}

func (m *memStore) Load(context.Context) ([]Snapshot, error) {
	return m.loaded, nil
}

func (m *memStore) Save(ctx context.Context, flowers []Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.last = flowers
	return m.saveErr
}

func (m *memStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	eng    *Engine
	store  *memStore
	events *recorder
	roller *entropy.Fixed
}

var testEpoch = time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, policy Policy, rolls ...int) fixture {
	t.Helper()
	store := &memStore{}
	events := &recorder{}
	roller := entropy.NewFixed(rolls...)

	var mu sync.Mutex
	seq := 0
	tick := 0
	eng, err := New(Options{
		MinRadius: 1,
		MaxRadius: 6,
		Boundary:  policy,
		Roller:    roller,
		Store:     store,
		Observers: []Observer{events},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("flower-%d", seq)
		},
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick++
			return testEpoch.Add(time.Duration(tick) * time.Second)
		},
	})
	require.NoError(t, err)
	return fixture{eng: eng, store: store, events: events, roller: roller}
}

func (f fixture) create(t *testing.T, radius int) string {
	t.Helper()
	lat, err := f.eng.Create(context.Background(), CreateOptions{Name: "Weather", Radius: radius})
	require.NoError(t, err)
	return lat.ID
}

var errDiskFull = errors.New("disk full")

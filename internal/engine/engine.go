// Package engine provides the Hex Flower navigation engine: it owns a set
// of flowers keyed by identifier, moves their cursors from two-die rolls
// and publishes state changes to observers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/hexflower/internal/entropy"
	apperrors "github.com/talgya/hexflower/internal/errors"
	"github.com/talgya/hexflower/internal/lattice"
)

// Default radius bounds and name.
const (
	DefaultMinRadius = 1
	DefaultMaxRadius = 10
	DefaultRadius    = 2
	DefaultName      = "Hex Flower"
)

// Roller supplies two-die rolls.
type Roller interface {
	Roll(ctx context.Context) (entropy.Roll, error)
}

// Store persists the full set of flowers.
type Store interface {
	Load(ctx context.Context) ([]Snapshot, error)
	Save(ctx context.Context, flowers []Snapshot) error
}

// Options configures an Engine. Zero fields take defaults.
type Options struct {
	MinRadius     int
	MaxRadius     int
	DefaultRadius int
	Boundary      Policy
	Roller        Roller           // Defaults to crypto/rand dice
	Store         Store            // Optional; nil disables persistence
	Observers     []Observer       // Receive every event
	NewID         func() string    // Defaults to uuid.NewString
	Now           func() time.Time // Defaults to UTC wall clock at millisecond precision
}

// CreateOptions describes a new flower.
type CreateOptions struct {
	Name     string
	Radius   int // Required; see Engine.DefaultRadius
	Metadata map[string]any
	Paint    *lattice.PaintConfig // Optional starter payloads
}

// Summary is a short listing entry.
type Summary struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Radius int           `json:"radius"`
	Cells  int           `json:"cells"`
	Cursor lattice.Coord `json:"cursor"`
	Moves  int           `json:"moves"`
}

type flower struct {
	mu      sync.Mutex // serializes navigate/edit/reset on one flower
	lat     *lattice.Lattice
	deleted bool // set under mu before the flower leaves the registry
}

// Engine owns flowers by identifier.
type Engine struct {
	minRadius     int
	maxRadius     int
	defaultRadius int
	roller        Roller
	store         Store
	newID         func() string
	now           func() time.Time

	mu        sync.RWMutex
	flowers   map[string]*flower
	order     []string
	boundary  Policy
	observers []Observer

	saveMu sync.Mutex
}

// New creates an engine with no flowers.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		minRadius:     opts.MinRadius,
		maxRadius:     opts.MaxRadius,
		defaultRadius: opts.DefaultRadius,
		roller:        opts.Roller,
		store:         opts.Store,
		newID:         opts.NewID,
		now:           opts.Now,
		flowers:       make(map[string]*flower),
		boundary:      opts.Boundary,
		observers:     append([]Observer(nil), opts.Observers...),
	}
	if e.minRadius == 0 {
		e.minRadius = DefaultMinRadius
	}
	if e.maxRadius == 0 {
		e.maxRadius = DefaultMaxRadius
	}
	if e.defaultRadius == 0 {
		e.defaultRadius = max(DefaultRadius, e.minRadius)
	}
	if e.minRadius < 1 || e.maxRadius < e.minRadius {
		return nil, apperrors.New(apperrors.CodeInvalidParameter,
			fmt.Sprintf("radius bounds [%d,%d] invalid", e.minRadius, e.maxRadius))
	}
	if e.defaultRadius < e.minRadius || e.defaultRadius > e.maxRadius {
		return nil, apperrors.New(apperrors.CodeInvalidParameter,
			fmt.Sprintf("default radius %d outside [%d,%d]", e.defaultRadius, e.minRadius, e.maxRadius))
	}
	if !e.boundary.Valid() {
		return nil, apperrors.New(apperrors.CodeInvalidParameter,
			fmt.Sprintf("unknown boundary policy %q", e.boundary))
	}
	if e.boundary == "" {
		e.boundary = Bounded
	}
	if e.roller == nil {
		e.roller = entropy.Crypto{}
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
	}
	return e, nil
}

// Observe registers an additional observer.
func (e *Engine) Observe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Boundary returns the active boundary policy.
func (e *Engine) Boundary() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.boundary
}

// SetBoundary switches the boundary policy for subsequent navigation.
func (e *Engine) SetBoundary(p Policy) error {
	if !p.Valid() {
		return apperrors.New(apperrors.CodeInvalidParameter, fmt.Sprintf("unknown boundary policy %q", p))
	}
	if p == "" {
		p = Bounded
	}
	e.mu.Lock()
	e.boundary = p
	e.mu.Unlock()
	slog.Info("boundary policy changed", "policy", p)
	return nil
}

// DefaultRadius returns the radius hosts should use when the caller gives none.
func (e *Engine) DefaultRadius() int {
	return e.defaultRadius
}

// RadiusRange returns the accepted radius bounds.
func (e *Engine) RadiusRange() (int, int) {
	return e.minRadius, e.maxRadius
}

// Load registers every flower held by the store, keeping their identifiers.
// No events are emitted. Flowers that fail validation are skipped.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snaps, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load flowers: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, snap := range snaps {
		if snap.ID == "" {
			slog.Warn("skipping stored flower without id", "name", snap.Name)
			continue
		}
		lat, err := snap.toLattice(snap.ID, 1, 0)
		if err != nil {
			slog.Warn("skipping invalid stored flower", "flower", snap.ID, "error", err)
			continue
		}
		if _, ok := e.flowers[lat.ID]; !ok {
			e.order = append(e.order, lat.ID)
		}
		e.flowers[lat.ID] = &flower{lat: lat}
	}
	slog.Info("flowers loaded", "count", len(e.flowers))
	return nil
}

// Create builds and registers a new flower with its cursor on the center.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) (*lattice.Lattice, error) {
	radius := opts.Radius
	if err := e.checkRadius(radius); err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	lat, err := lattice.New(e.newID(), name, radius, opts.Metadata)
	if err != nil {
		return nil, err
	}
	if opts.Paint != nil {
		lattice.Paint(lat.Cells, radius, *opts.Paint)
	}

	out := e.register(lat)
	slog.Info("flower created", "flower", lat.ID, "name", name, "radius", radius)
	e.persist(ctx)
	e.emit(Event{Kind: EventCreated, FlowerID: lat.ID, Flower: snapshotPtr(out)})
	return out, nil
}

func (e *Engine) register(lat *lattice.Lattice) *lattice.Lattice {
	out := lat.Clone()
	e.mu.Lock()
	e.flowers[lat.ID] = &flower{lat: lat}
	e.order = append(e.order, lat.ID)
	e.mu.Unlock()
	return out
}

func (e *Engine) checkRadius(radius int) error {
	if radius < e.minRadius || radius > e.maxRadius {
		return apperrors.WithMetadata(apperrors.CodeInvalidParameter,
			fmt.Sprintf("radius %d outside [%d,%d]", radius, e.minRadius, e.maxRadius),
			map[string]string{"radius": strconv.Itoa(radius)})
	}
	return nil
}

// Get returns a copy of the flower.
func (e *Engine) Get(id string) (*lattice.Lattice, bool) {
	f := e.lookup(id)
	if f == nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lat.Clone(), true
}

// List returns a summary of every flower in creation order.
func (e *Engine) List() []Summary {
	e.mu.RLock()
	flowers := make([]*flower, 0, len(e.order))
	for _, id := range e.order {
		flowers = append(flowers, e.flowers[id])
	}
	e.mu.RUnlock()

	out := make([]Summary, 0, len(flowers))
	for _, f := range flowers {
		f.mu.Lock()
		out = append(out, Summary{
			ID:     f.lat.ID,
			Name:   f.lat.Name,
			Radius: f.lat.Radius,
			Cells:  len(f.lat.Cells),
			Cursor: f.lat.Cursor,
			Moves:  len(f.lat.History),
		})
		f.mu.Unlock()
	}
	return out
}

// Delete removes a flower.
func (e *Engine) Delete(ctx context.Context, id string) error {
	f := e.lookup(id)
	if f == nil {
		return notFound(id)
	}

	// Mark first so in-flight operations holding f stop touching it.
	f.mu.Lock()
	if f.deleted {
		f.mu.Unlock()
		return notFound(id)
	}
	f.deleted = true
	snap := snapshotPtr(f.lat)
	f.mu.Unlock()

	e.mu.Lock()
	delete(e.flowers, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	slog.Info("flower deleted", "flower", id)
	e.persist(ctx)
	e.emit(Event{Kind: EventDeleted, FlowerID: id, Flower: snap})
	return nil
}

func (e *Engine) lookup(id string) *flower {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.flowers[id]
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("flower %q not found", id),
		map[string]string{"flower_id": id})
}

// persist hands the full flower set to the store. Failures are logged,
// never surfaced: storage reliability belongs to the store. The save is
// not cancelled with the caller, since the mutation has already happened.
func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snaps := e.snapshots()
	if err := e.store.Save(ctx, snaps); err != nil {
		slog.Error("save flowers failed", "count", len(snaps), "error", err)
	}
}

func (e *Engine) snapshots() []Snapshot {
	e.mu.RLock()
	flowers := make([]*flower, 0, len(e.order))
	for _, id := range e.order {
		flowers = append(flowers, e.flowers[id])
	}
	e.mu.RUnlock()

	out := make([]Snapshot, 0, len(flowers))
	for _, f := range flowers {
		f.mu.Lock()
		out = append(out, NewSnapshot(f.lat))
		f.mu.Unlock()
	}
	return out
}

func (e *Engine) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()
	for _, o := range observers {
		o.Notify(ev)
	}
}

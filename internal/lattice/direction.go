package lattice

import (
	"fmt"
	"strconv"

	apperrors "github.com/talgya/hexflower/internal/errors"
)

// Direction is one of the six symbolic movement directions, labelled a–f.
type Direction string

const (
	North     Direction = "a"
	NorthEast Direction = "b"
	SouthEast Direction = "c"
	South     Direction = "d"
	SouthWest Direction = "e"
	NorthWest Direction = "f"
)

// Roll totals produced by two six-sided dice.
const (
	MinRoll = 2
	MaxRoll = 12
)

// KeyEntry is one row of the navigation key.
type KeyEntry struct {
	Direction Direction `json:"direction"`
	Compass   string    `json:"compass"`
	Delta     Coord     `json:"delta"`
	Totals    []int     `json:"totals"`
}

// navigationKey maps roll totals to directions and displacements (pointy-top axial).
var navigationKey = [6]KeyEntry{
	{Direction: North, Compass: "N", Delta: Coord{Q: 0, R: -1}, Totals: []int{12}},
	{Direction: NorthEast, Compass: "NE", Delta: Coord{Q: 1, R: -1}, Totals: []int{2, 3}},
	{Direction: SouthEast, Compass: "SE", Delta: Coord{Q: 1, R: 0}, Totals: []int{4, 5}},
	{Direction: South, Compass: "S", Delta: Coord{Q: 0, R: 1}, Totals: []int{6, 7}},
	{Direction: SouthWest, Compass: "SW", Delta: Coord{Q: -1, R: 1}, Totals: []int{8, 9}},
	{Direction: NorthWest, Compass: "NW", Delta: Coord{Q: -1, R: 0}, Totals: []int{10, 11}},
}

// byTotal is indexed by roll total; entries below MinRoll stay empty.
var byTotal = func() [MaxRoll + 1]Direction {
	var table [MaxRoll + 1]Direction
	for _, entry := range navigationKey {
		for _, t := range entry.Totals {
			table[t] = entry.Direction
		}
	}
	return table
}()

// ResolveDirection maps a two-die roll total to its direction.
func ResolveDirection(total int) (Direction, error) {
	if total < MinRoll || total > MaxRoll {
		return "", apperrors.WithMetadata(apperrors.CodeInvalidParameter,
			fmt.Sprintf("roll total %d outside [%d,%d]", total, MinRoll, MaxRoll),
			map[string]string{"roll_total": strconv.Itoa(total)})
	}
	return byTotal[total], nil
}

// Key returns a copy of the navigation key in direction order.
func Key() []KeyEntry {
	out := make([]KeyEntry, len(navigationKey))
	for i, entry := range navigationKey {
		entry.Totals = append([]int(nil), entry.Totals...)
		out[i] = entry
	}
	return out
}

// Delta returns the axial displacement for d. Unknown directions yield the zero vector.
func (d Direction) Delta() Coord {
	if entry, ok := d.entry(); ok {
		return entry.Delta
	}
	return Coord{}
}

// Compass returns the compass label (N, NE, ...) for d.
func (d Direction) Compass() string {
	if entry, ok := d.entry(); ok {
		return entry.Compass
	}
	return ""
}

// Valid reports whether d is one of the six key directions.
func (d Direction) Valid() bool {
	_, ok := d.entry()
	return ok
}

func (d Direction) entry() (KeyEntry, bool) {
	for _, entry := range navigationKey {
		if entry.Direction == d {
			return entry, true
		}
	}
	return KeyEntry{}, false
}

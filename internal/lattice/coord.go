// Package lattice provides the bounded hex grid behind a Hex Flower.
// Uses axial coordinates (q, r); the third cube coordinate s is derived.
package lattice

import "fmt"

// Coord represents a position on the lattice using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Center is the unique cell every lattice contains.
var Center = Coord{}

// S returns the implicit third cube coordinate.
func (c Coord) S() int {
	return -c.Q - c.R
}

// Add returns c displaced by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{Q: c.Q + d.Q, R: c.R + d.R}
}

// Antipode returns the point reflection of c through the lattice center.
func (c Coord) Antipode() Coord {
	return Coord{Q: -c.Q, R: -c.R}
}

// Neighbors returns the six adjacent coordinates in key order (a through f).
func (c Coord) Neighbors() [6]Coord {
	var result [6]Coord
	for i, entry := range navigationKey {
		result[i] = c.Add(entry.Delta)
	}
	return result
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Q, c.R)
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b Coord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

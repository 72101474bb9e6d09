package lattice

// Cell is a single hex of a flower. Identity is the coordinate; the
// display payload is mutable. Empty strings mean "unset".
type Cell struct {
	Coord   Coord  `json:"coord"`
	Content string `json:"content,omitempty"`
	Label   string `json:"label"`
	Color   string `json:"color,omitempty"`
}

// Payload is a partial update for a cell. Empty fields are left untouched.
type Payload struct {
	Content string `json:"content,omitempty"`
	Label   string `json:"label,omitempty"`
	Color   string `json:"color,omitempty"`
}

// Empty reports whether the payload would change nothing.
func (p Payload) Empty() bool {
	return p.Content == "" && p.Label == "" && p.Color == ""
}

// Apply overwrites each non-empty payload field on the cell.
func (c *Cell) Apply(p Payload) {
	if p.Content != "" {
		c.Content = p.Content
	}
	if p.Label != "" {
		c.Label = p.Label
	}
	if p.Color != "" {
		c.Color = p.Color
	}
}

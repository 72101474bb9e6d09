package lattice

import "time"

// Kind distinguishes ordinary moves from antipodal wraps in the history.
type Kind string

const (
	KindMove Kind = "move"
	KindWrap Kind = "wrap"
)

// HistoryEntry records one cursor change.
type HistoryEntry struct {
	From      Coord     `json:"from"`
	To        Coord     `json:"to"`
	Direction Direction `json:"direction"`
	Kind      Kind      `json:"type"`
	Time      time.Time `json:"timestamp"`
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/talgya/hexflower/internal/errors"
	"github.com/talgya/hexflower/internal/lattice"
)

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t, Wrapping)
	lat, err := f.eng.Create(context.Background(), CreateOptions{
		Name:     "Jungle",
		Radius:   2,
		Metadata: map[string]any{"author": "gm", "tags": map[string]any{"biome": "jungle"}},
	})
	require.NoError(t, err)
	id := lat.ID

	f.eng.SetCellContent(context.Background(), id, lattice.Coord{Q: 0, R: 1}, lattice.Payload{Label: "Rain", Content: "Heavy rain", Color: "#00f"})
	f.eng.SetCellContent(context.Background(), id, lattice.Coord{Q: -1, R: 0}, lattice.Payload{Label: "Fog"})
	for _, total := range []int{7, 7, 7} {
		_, err := f.eng.NavigateTotal(context.Background(), id, total)
		require.NoError(t, err)
	}

	data, ok, err := f.eng.ExportJSON(id)
	require.NoError(t, err)
	require.True(t, ok)

	imported, err := f.eng.ImportSnapshot(context.Background(), data)
	require.NoError(t, err)
	assert.NotEqual(t, id, imported.ID)

	orig, _ := f.eng.ExportSnapshot(id)
	copied, _ := f.eng.ExportSnapshot(imported.ID)
	assert.Equal(t, orig.Radius, copied.Radius)
	assert.Equal(t, orig.Name, copied.Name)
	assert.Equal(t, orig.Hexes, copied.Hexes)
	assert.Equal(t, orig.CurrentPosition, copied.CurrentPosition)
	assert.Equal(t, orig.History, copied.History)
	assert.Equal(t, orig.Metadata, copied.Metadata)

	require.Len(t, copied.History, 3)
	assert.Equal(t, lattice.KindWrap, copied.History[2].Type)
	assert.Equal(t, EventImported, f.events.Last().Kind)
	assert.Len(t, f.eng.List(), 2)
}

func TestExportFormat(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 1)
	f.eng.SetCellContent(context.Background(), id, lattice.Center, lattice.Payload{Label: "Calm"})
	_, err := f.eng.NavigateTotal(context.Background(), id, 10)
	require.NoError(t, err)

	data, ok, err := f.eng.ExportJSON(id)
	require.NoError(t, err)
	require.True(t, ok)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "name", "radius", "hexes", "metadata", "currentPosition", "history"} {
		assert.Contains(t, raw, key)
	}
	hexes := raw["hexes"].([]any)
	require.Len(t, hexes, 7)
	first := hexes[0].(map[string]any)
	for _, key := range []string{"q", "r", "s", "content", "label", "color"} {
		assert.Contains(t, first, key)
	}
	assert.Nil(t, first["content"])
	assert.Nil(t, first["color"])

	history := raw["history"].([]any)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, "f", entry["direction"])
	assert.Equal(t, "move", entry["type"])
	lat, _ := f.eng.Get(id)
	assert.Equal(t, float64(lat.History[0].Time.UnixMilli()), entry["timestamp"])
	assert.Equal(t, map[string]any{"q": float64(-1), "r": float64(0)}, raw["currentPosition"])

	_, ok, err = f.eng.ExportJSON("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok = f.eng.ExportSnapshot("missing")
	assert.False(t, ok)
}

func TestImportToleratesMissingType(t *testing.T) {
	f := newFixture(t, Bounded)
	data := []byte(`{
		"id": "foreign-id",
		"name": "Legacy",
		"radius": 1,
		"hexes": [{"q": 0, "r": 1, "s": -1, "content": null, "label": "Snow", "color": "#fff"}],
		"metadata": {},
		"currentPosition": {"q": 0, "r": 1},
		"history": [
			{"from": {"q": 0, "r": 0}, "to": {"q": 0, "r": 1}, "direction": "d", "timestamp": 1700000000000},
			{"from": {"q": 0, "r": 1}, "to": {"q": 0, "r": 1}, "direction": "a", "timestamp": "2026-03-01T10:00:00Z"}
		]
	}`)

	lat, err := f.eng.ImportSnapshot(context.Background(), data)
	require.NoError(t, err)

	assert.NotEqual(t, "foreign-id", lat.ID)
	assert.Equal(t, lattice.Coord{Q: 0, R: 1}, lat.Cursor)
	assert.Equal(t, "Snow", lat.Get(lattice.Coord{Q: 0, R: 1}).Label)
	assert.Equal(t, "#fff", lat.Get(lattice.Coord{Q: 0, R: 1}).Color)
	assert.Len(t, lat.Cells, 7, "cells missing from the snapshot are regenerated")
	require.Len(t, lat.History, 2)
	assert.Equal(t, lattice.KindMove, lat.History[0].Kind)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), lat.History[0].Time)
	assert.Equal(t, time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC), lat.History[1].Time)
}

func TestImportNeverReusesID(t *testing.T) {
	f := newFixture(t, Bounded)
	id := f.create(t, 1)
	data, _, err := f.eng.ExportJSON(id)
	require.NoError(t, err)

	a, err := f.eng.ImportSnapshot(context.Background(), data)
	require.NoError(t, err)
	b, err := f.eng.ImportSnapshot(context.Background(), data)
	require.NoError(t, err)

	assert.NotEqual(t, id, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, f.eng.List(), 3)
}

func TestImportMalformedLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, Bounded)
	f.create(t, 1)
	saves := f.store.Saves()

	for _, input := range []string{``, `{`, `[1,2]`, `{"radius": "two"}`, `{"history": [{"timestamp": "yesterday"}]}`, `not json`} {
		_, err := f.eng.ImportSnapshot(context.Background(), []byte(input))
		if !errors.Is(err, apperrors.ErrParse) {
			t.Fatalf("ImportSnapshot(%q) error = %v, want parse error", input, err)
		}
	}

	assert.Len(t, f.eng.List(), 1)
	assert.Equal(t, saves, f.store.Saves())
	assert.Equal(t, []EventKind{EventCreated}, f.events.Kinds())
}

func TestImportSemanticallyInvalid(t *testing.T) {
	f := newFixture(t, Bounded)

	tcs := map[string]string{
		"empty object":         `{}`,
		"null":                 `null`,
		"radius too large":     `{"radius": 9}`,
		"hex outside radius":   `{"radius": 1, "hexes": [{"q": 3, "r": 0}]}`,
		"cursor outside":       `{"radius": 1, "currentPosition": {"q": 2, "r": 0}}`,
		"bad history type":     `{"radius": 1, "history": [{"direction": "a", "type": "teleport"}]}`,
		"bad direction":        `{"radius": 1, "history": [{"direction": "z"}]}`,
		"history from outside": `{"radius": 1, "history": [{"from": {"q": 0, "r": -2}, "to": {"q": 0, "r": -1}, "direction": "d"}]}`,
		"history to outside":   `{"radius": 1, "history": [{"from": {"q": 0, "r": 0}, "to": {"q": 3, "r": 0}, "direction": "c"}]}`,
	}
	for name, input := range tcs {
		_, err := f.eng.ImportSnapshot(context.Background(), []byte(input))
		assert.ErrorIs(t, err, apperrors.ErrInvalidParameter, name)
		assert.NotErrorIs(t, err, apperrors.ErrParse, name)
	}
	assert.Empty(t, f.eng.List())
	assert.Zero(t, f.store.Saves())
}

func TestMillisJSON(t *testing.T) {
	var m Millis
	require.NoError(t, json.Unmarshal([]byte(`1700000000123`), &m))
	assert.Equal(t, Millis(1700000000123), m)

	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Zero(t, m)

	out, err := json.Marshal(Millis(42))
	require.NoError(t, err)
	assert.Equal(t, `42`, string(out))
}

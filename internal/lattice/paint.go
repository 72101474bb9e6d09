// Flower painting using layered simplex noise.
// Samples noise at each cell's cartesian centre and bands it into a palette.
package lattice

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Swatch is one band of a paint palette.
type Swatch struct {
	Label   string `json:"label"`
	Color   string `json:"color"`
	Content string `json:"content,omitempty"`
}

// PaintConfig holds flower painting parameters.
type PaintConfig struct {
	Seed        int64    // Noise seed; every value, 0 included, is deterministic
	Octaves     int      // Noise layers
	Frequency   float64  // Base sampling frequency
	Persistence float64  // Amplitude falloff per octave
	EdgeBias    float64  // 0..1, pushes outer cells toward the last swatch
	Palette     []Swatch // Ordered calm → extreme
}

// DefaultPaintConfig returns a weather palette, calm at the center and
// harsher toward the rim.
func DefaultPaintConfig() PaintConfig {
	return PaintConfig{
		Octaves:     3,
		Frequency:   0.35,
		Persistence: 0.5,
		EdgeBias:    0.35,
		Palette: []Swatch{
			{Label: "Clear", Color: "#f6d365"},
			{Label: "Fair", Color: "#a8e063"},
			{Label: "Cloudy", Color: "#bdc3c7"},
			{Label: "Rain", Color: "#5dade2"},
			{Label: "Wind", Color: "#85929e"},
			{Label: "Storm", Color: "#34495e"},
		},
	}
}

// NewPaintSeed picks a random noise seed for callers that did not choose one.
func NewPaintSeed() int64 {
	return rand.Int63()
}

// Paint fills the payload of every cell from the palette. The same seed
// and cell set always produce the same result.
func Paint(cells []*Cell, radius int, cfg PaintConfig) {
	if len(cfg.Palette) == 0 || len(cells) == 0 {
		return
	}
	octaves := cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}
	noise := opensimplex.NewNormalized(cfg.Seed)

	for _, c := range cells {
		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(c.Coord.Q) + float64(c.Coord.R)*0.5
		y := float64(c.Coord.R) * math.Sqrt(3.0) / 2.0

		v := octaveNoise(noise, x, y, octaves, cfg.Frequency, cfg.Persistence)
		if radius > 0 && cfg.EdgeBias > 0 {
			dist := float64(Distance(Center, c.Coord)) / float64(radius)
			v = v*(1-cfg.EdgeBias) + dist*cfg.EdgeBias
		}

		band := int(v * float64(len(cfg.Palette)))
		if band < 0 {
			band = 0
		}
		if band >= len(cfg.Palette) {
			band = len(cfg.Palette) - 1
		}
		sw := cfg.Palette[band]
		c.Apply(Payload{Label: sw.Label, Color: sw.Color, Content: sw.Content})
	}
}

// octaveNoise sums several noise layers, normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxAmp := 0.0
	freq := frequency
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*freq, y*freq) * amplitude
		maxAmp += amplitude
		amplitude *= persistence
		freq *= 2
	}
	return total / maxAmp
}

// Package environment runs the synthetic flood-risk analysis.
//
// Grids of old and new water index (NDWI), elevation and rainfall are
// generated from a fixed seed, combined into a per-cell risk score and
// grouped into connected regions that are returned as GeoJSON.
package environment

import (
	"math"
	"math/rand/v2"
)

// Grid is a square row-major raster.
type Grid struct {
	Size  int
	Cells []float64
}

// NewGrid allocates a zeroed size×size grid.
func NewGrid(size int) Grid {
	return Grid{Size: size, Cells: make([]float64, size*size)}
}

// At returns the value at row r, column c.
func (g Grid) At(r, c int) float64 { return g.Cells[r*g.Size+c] }

// Set stores v at row r, column c.
func (g Grid) Set(r, c int, v float64) { g.Cells[r*g.Size+c] = v }

// Inputs are the synthetic rasters for one analysis.
type Inputs struct {
	OldNDWI  Grid
	NewNDWI  Grid
	DEM      Grid
	Rainfall Grid
}

// Seed is the base seed of the synthetic rasters.
const Seed = 42

// Synthesize generates the rasters for a size×size grid centred on lat/lon.
// The output depends only on its arguments.
func Synthesize(lat, lon float64, size int) Inputs {
	stream := math.Float64bits(lat)*31 + math.Float64bits(lon)
	rng := rand.New(rand.NewPCG(Seed, stream))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	in := Inputs{
		OldNDWI:  NewGrid(size),
		NewNDWI:  NewGrid(size),
		DEM:      NewGrid(size),
		Rainfall: NewGrid(size),
	}

	// riverDist is the distance of a cell from the diagonal river channel.
	riverDist := func(r, c int) float64 { return math.Abs(float64(r) - float64(c)*0.8) }

	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			old := uniform(-0.3, 0.2)
			if riverDist(r, c) < 5 {
				old = uniform(0.3, 0.6)
			}
			in.OldNDWI.Set(r, c, old)

			cur := old
			if riverDist(r, c) < 8 {
				cur = uniform(0.35, 0.7)
			}
			in.NewNDWI.Set(r, c, cur)
		}
	}

	// Flood patches.
	for i := 0; i < 3; i++ {
		cx := 10 + rng.IntN(max(size-20, 1))
		cy := 10 + rng.IntN(max(size-20, 1))
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				if math.Hypot(float64(c-cx), float64(r-cy)) < 4 {
					in.NewNDWI.Set(r, c, uniform(0.4, 0.7))
				}
			}
		}
	}

	mountains := [][2]float64{{10, 10}, {40, 40}, {25, 35}}
	monsoons := [][2]float64{{15, 20}, {35, 40}, {25, 30}}

	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			elev := 100 + 50*(riverDist(r, c)/10) + uniform(-5, 5)
			for _, m := range mountains {
				elev += 80 * math.Exp(-math.Hypot(float64(c)-m[1], float64(r)-m[0])/8)
			}
			in.DEM.Set(r, c, elev)

			rain := uniform(50, 150)
			for _, m := range monsoons {
				rain += 100 * math.Exp(-math.Hypot(float64(c)-m[1], float64(r)-m[0])/5)
			}
			in.Rainfall.Set(r, c, clamp(rain, 0, 500))
		}
	}

	return in
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

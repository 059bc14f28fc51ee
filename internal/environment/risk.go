package environment

import "math"

const (
	// waterChangeThreshold is the minimum NDWI increase counted as expansion.
	waterChangeThreshold = 0.2
	// waterPresence is the NDWI above which a cell is considered water.
	waterPresence = 0.3
	// cellSizeM is the DEM cell spacing in metres.
	cellSizeM = 30.0
)

// WaterChange marks cells where water expanded between the two NDWI rasters.
func WaterChange(oldNDWI, newNDWI Grid) []bool {
	out := make([]bool, len(newNDWI.Cells))
	for i := range out {
		out[i] = newNDWI.Cells[i]-oldNDWI.Cells[i] > waterChangeThreshold && newNDWI.Cells[i] > waterPresence
	}
	return out
}

// SlopeFactor converts terrain slope into a 0–25 risk contribution.
func SlopeFactor(dem Grid) Grid {
	out := NewGrid(dem.Size)
	for r := 0; r < dem.Size; r++ {
		for c := 0; c < dem.Size; c++ {
			gy := gradient(dem, r, c, true)
			gx := gradient(dem, r, c, false)
			deg := math.Atan(math.Hypot(gx, gy)) * 180 / math.Pi

			var f float64
			switch {
			case deg <= 5:
				f = deg
			case deg <= 15:
				f = 5 + (deg - 5)
			case deg <= 30:
				f = 15 + (deg-15)*0.67
			default:
				f = 25
			}
			out.Set(r, c, f)
		}
	}
	return out
}

// gradient is a central difference in the interior and a one-sided
// difference at the edges, divided by the cell spacing.
func gradient(g Grid, r, c int, alongRows bool) float64 {
	n := g.Size
	if n < 2 {
		return 0
	}
	at := func(i int) float64 {
		if alongRows {
			return g.At(i, c)
		}
		return g.At(r, i)
	}
	i := c
	if alongRows {
		i = r
	}
	switch i {
	case 0:
		return (at(1) - at(0)) / cellSizeM
	case n - 1:
		return (at(n-1) - at(n-2)) / cellSizeM
	default:
		return (at(i+1) - at(i-1)) / (2 * cellSizeM)
	}
}

// RainfallFactor converts rainfall (mm) into a 0–15 risk contribution.
func RainfallFactor(rain Grid) Grid {
	out := NewGrid(rain.Size)
	for i, mm := range rain.Cells {
		var f float64
		switch {
		case mm <= 50:
			f = mm / 50 * 3
		case mm <= 150:
			f = 3 + (mm-50)/100*5
		case mm <= 300:
			f = 8 + (mm-150)/150*4
		default:
			f = math.Min(12+(mm-300)/100, 15)
		}
		out.Cells[i] = clamp(f, 0, 15)
	}
	return out
}

// RiskScore combines the factors into a 0–100 score. Water-change cells
// score 50 plus their slope and rainfall factors; their dry neighbours get a
// proximity bonus of 10.
func RiskScore(water []bool, slope, rain Grid) Grid {
	n := slope.Size
	out := NewGrid(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			i := r*n + c
			var score float64
			if water[i] {
				score = 50 + slope.Cells[i] + rain.Cells[i]
			} else if nearWater(water, n, r, c) {
				score = 10
			}
			out.Cells[i] = clamp(score, 0, 100)
		}
	}
	return out
}

// nearWater reports whether any cell in the 3×3 window around (r, c) is water.
func nearWater(water []bool, n, r, c int) bool {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			rr, cc := r+dr, c+dc
			if rr < 0 || cc < 0 || rr >= n || cc >= n {
				continue
			}
			if water[rr*n+cc] {
				return true
			}
		}
	}
	return false
}

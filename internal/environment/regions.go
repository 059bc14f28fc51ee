package environment

import (
	geojson "github.com/paulmach/go.geojson"
)

// Band is a risk level with its score range [Min, Max).
type Band struct {
	Level string
	Min   float64
	Max   float64
	Color string
}

// Bands are evaluated in this order.
var Bands = []Band{
	{Level: "HIGH", Min: 80, Max: 100, Color: "#ef4444"},
	{Level: "MEDIUM", Min: 60, Max: 80, Color: "#f97316"},
	{Level: "LOW", Min: 40, Max: 60, Color: "#fbbf24"},
}

const (
	minRegionCells = 3
	kmPerCell      = 1.0
	degPerCell     = kmPerCell / 111.0
)

// Region is a connected group of cells in one band.
type Region struct {
	Level     string
	Color     string
	Cells     int
	MeanScore float64
	// Bounding box in cells; max bounds are exclusive.
	MinRow, MinCol, MaxRow, MaxCol int
}

// FindRegions labels 8-connected cells of each band and keeps regions of at
// least minRegionCells cells.
func FindRegions(score Grid) []Region {
	n := score.Size
	var regions []Region

	for _, band := range Bands {
		in := func(i int) bool {
			v := score.Cells[i]
			return v >= band.Min && v < band.Max
		}
		seen := make([]bool, n*n)

		for start := range score.Cells {
			if seen[start] || !in(start) {
				continue
			}

			reg := Region{Level: band.Level, Color: band.Color, MinRow: n, MinCol: n}
			var sum float64
			queue := []int{start}
			seen[start] = true

			for len(queue) > 0 {
				i := queue[0]
				queue = queue[1:]
				r, c := i/n, i%n

				reg.Cells++
				sum += score.Cells[i]
				reg.MinRow = min(reg.MinRow, r)
				reg.MinCol = min(reg.MinCol, c)
				reg.MaxRow = max(reg.MaxRow, r+1)
				reg.MaxCol = max(reg.MaxCol, c+1)

				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						rr, cc := r+dr, c+dc
						if rr < 0 || cc < 0 || rr >= n || cc >= n {
							continue
						}
						j := rr*n + cc
						if !seen[j] && in(j) {
							seen[j] = true
							queue = append(queue, j)
						}
					}
				}
			}

			if reg.Cells < minRegionCells {
				continue
			}
			reg.MeanScore = sum / float64(reg.Cells)
			regions = append(regions, reg)
		}
	}
	return regions
}

// Bounds returns the region's geographic box. Rows run south from the
// centre latitude and columns run east from the centre longitude.
func (r Region) Bounds(lat, lon float64) (latMin, latMax, lonMin, lonMax float64) {
	latMax = lat - float64(r.MinRow)*degPerCell
	latMin = lat - float64(r.MaxRow)*degPerCell
	lonMin = lon + float64(r.MinCol)*degPerCell
	lonMax = lon + float64(r.MaxCol)*degPerCell
	return
}

// AreaKm2 is the region's area.
func (r Region) AreaKm2() float64 {
	return float64(r.Cells) * kmPerCell * kmPerCell
}

// Feature converts the region into a GeoJSON polygon feature.
func (r Region) Feature(lat, lon float64) *geojson.Feature {
	latMin, latMax, lonMin, lonMax := r.Bounds(lat, lon)
	f := geojson.NewPolygonFeature([][][]float64{{
		{lonMin, latMin},
		{lonMax, latMin},
		{lonMax, latMax},
		{lonMin, latMax},
		{lonMin, latMin},
	}})
	f.SetProperty("risk_level", r.Level)
	f.SetProperty("risk_score", r.MeanScore)
	f.SetProperty("area_km2", r.AreaKm2())
	f.SetProperty("color", r.Color)
	f.SetProperty("center_lat", (latMin+latMax)/2)
	f.SetProperty("center_lon", (lonMin+lonMax)/2)
	return f
}

// Collection builds the feature collection for regions around lat/lon.
func Collection(regions []Region, lat, lon float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		fc.AddFeature(r.Feature(lat, lon))
	}
	return fc
}

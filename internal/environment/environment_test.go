package environment

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/satdash/internal/zones"
)

var now = time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)

func gridOf(size int, vals ...float64) Grid {
	g := NewGrid(size)
	copy(g.Cells, vals)
	return g
}

func TestWaterChange(t *testing.T) {
	old := gridOf(2, 0.0, 0.2, 0.1, 0.5)
	cur := gridOf(2, 0.5, 0.3, 0.25, 0.8)
	// Cell 1: Δ 0.1 too small. Cell 2: new below presence threshold.
	assert.Equal(t, []bool{true, false, false, true}, WaterChange(old, cur))
}

func TestRainfallFactor(t *testing.T) {
	tests := []struct{ mm, want float64 }{
		{0, 0},
		{50, 3},
		{100, 5.5},
		{150, 8},
		{300, 12},
		{400, 13},
		{500, 14},
		{900, 15},
	}
	for _, tt := range tests {
		got := RainfallFactor(gridOf(1, tt.mm)).Cells[0]
		assert.InDelta(t, tt.want, got, 1e-9, "rainfall %v", tt.mm)
	}
}

func TestSlopeFactorFlatAndSteep(t *testing.T) {
	flat := gridOf(3, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	for _, v := range SlopeFactor(flat).Cells {
		assert.Zero(t, v)
	}

	// 60 m rise per 30 m cell along columns is ~63° of slope.
	steep := NewGrid(3)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			steep.Set(r, c, float64(c)*60)
		}
	}
	for _, v := range SlopeFactor(steep).Cells {
		assert.Equal(t, 25.0, v)
	}
}

func TestRiskScoreProximity(t *testing.T) {
	water := make([]bool, 25)
	water[12] = true // centre of a 5x5 grid
	slope := gridOf(5)
	rain := NewGrid(5)
	rain.Cells[12] = 8

	score := RiskScore(water, slope, rain)
	assert.Equal(t, 58.0, score.Cells[12])
	assert.Equal(t, 10.0, score.At(1, 1), "diagonal neighbour gets the proximity bonus")
	assert.Equal(t, 0.0, score.At(0, 0))
}

func TestFindRegions(t *testing.T) {
	score := NewGrid(6)
	// A diagonal MEDIUM chain of 3 cells: 8-connectivity joins it.
	score.Set(0, 0, 65)
	score.Set(1, 1, 70)
	score.Set(2, 2, 75)
	// A 2-cell HIGH blob, below the minimum size.
	score.Set(5, 4, 85)
	score.Set(5, 5, 90)

	regions := FindRegions(score)
	require.Len(t, regions, 1)
	r := regions[0]
	assert.Equal(t, "MEDIUM", r.Level)
	assert.Equal(t, 3, r.Cells)
	assert.InDelta(t, 70, r.MeanScore, 1e-9)
	assert.Equal(t, [4]int{0, 0, 3, 3}, [4]int{r.MinRow, r.MinCol, r.MaxRow, r.MaxCol})

	latMin, latMax, lonMin, lonMax := r.Bounds(26, 92)
	assert.InDelta(t, 26, latMax, 1e-12)
	assert.InDelta(t, 26-3/111.0, latMin, 1e-12)
	assert.InDelta(t, 92, lonMin, 1e-12)
	assert.InDelta(t, 92+3/111.0, lonMax, 1e-12)
}

func TestAnalyzeGeoJSON(t *testing.T) {
	a, err := Analyze(26, 92, DefaultGridSize, now)
	require.NoError(t, err)
	require.NotEmpty(t, a.GeoJSON.Features, "synthetic flood should produce risk regions")

	raw, err := json.Marshal(a.GeoJSON)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)

	for _, f := range fc.Features {
		require.True(t, f.Geometry.IsPolygon())
		ring := f.Geometry.Polygon[0]
		assert.Len(t, ring, 5)
		assert.Equal(t, ring[0], ring[4], "ring must be closed")

		score := f.PropertyMustFloat64("risk_score")
		assert.GreaterOrEqual(t, score, 40.0)
		assert.LessOrEqual(t, score, 100.0)
		assert.GreaterOrEqual(t, f.PropertyMustFloat64("area_km2"), float64(minRegionCells))
	}

	assert.Len(t, a.Alerts, len(a.GeoJSON.Features))
	assert.Equal(t, len(a.Alerts), a.Metadata.TotalAlerts)
	assert.Equal(t, a.Metadata.TotalAlerts, a.Metadata.HighRiskCount+a.Metadata.MediumRiskCount+a.Metadata.LowRiskCount)

	again, err := Analyze(26, 92, DefaultGridSize, now)
	require.NoError(t, err)
	assert.Equal(t, a.Alerts, again.Alerts, "analysis must be deterministic")
}

func TestAnalyzeRejectsGridSize(t *testing.T) {
	for _, size := range []int{0, 19, 101} {
		_, err := Analyze(26, 92, size, now)
		assert.True(t, errors.Is(err, ErrGridSize), "size %d: %v", size, err)
	}
	_, err := Analyze(95, 92, 50, now)
	assert.Error(t, err)
}

func TestAlertsOrderAndConfidence(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	add := func(level string, score, area float64) {
		f := geojson.NewPolygonFeature([][][]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
		f.SetProperty("risk_level", level)
		f.SetProperty("risk_score", score)
		f.SetProperty("area_km2", area)
		f.SetProperty("center_lat", 26.0)
		f.SetProperty("center_lon", 92.0)
		fc.AddFeature(f)
	}
	add("LOW", 45, 10)
	add("HIGH", 85, 4)
	add("MEDIUM", 65, 3)
	add("HIGH", 99, 8)

	alerts := Alerts(fc, "Kerala Backwaters", now)
	require.Len(t, alerts, 4)

	var got []string
	for _, a := range alerts {
		got = append(got, a.Level)
	}
	assert.Equal(t, []string{"HIGH", "HIGH", "MEDIUM", "LOW"}, got)
	assert.Equal(t, 8.0, alerts[0].AreaKm2, "larger area first within a level")
	assert.Contains(t, alerts[0].Description, "Kerala Backwaters (26.00°N, 92.00°E)")
	assert.Equal(t, "ALERT-20260715-003", alerts[0].ID)

	assert.Equal(t, 95.0, Confidence(99))
	assert.InDelta(t, 63.5, Confidence(45), 1e-9)
	assert.Equal(t, 50.0, Confidence(20))
}

func TestToZones(t *testing.T) {
	alerts := []Alert{
		{ID: "ALERT-1", Level: "HIGH", AreaKm2: math.Pi * 4, Confidence: 95, Location: Location{Lat: 26, Lon: 92}},
		{ID: "ALERT-2", Level: "LOW", AreaKm2: 1, Confidence: 55, Location: Location{Lat: 10, Lon: 76}},
	}
	zs := ToZones(alerts)
	require.Len(t, zs, 2)
	assert.Equal(t, zones.SeverityCritical, zs[0].Severity)
	assert.InDelta(t, 2, zs[0].RadiusKm, 1e-9)
	assert.Equal(t, zones.SeverityLow, zs[1].Severity)
	assert.Equal(t, 1.0, zs[1].RadiusKm)
	for _, z := range zs {
		assert.NoError(t, z.Validate())
	}
}

func TestNational(t *testing.T) {
	a := National(now)
	assert.Equal(t, len(KeyRegions), a.Metadata.RegionsAnalyzed)
	assert.Len(t, a.Alerts, len(a.GeoJSON.Features))

	ids := make(map[string]bool)
	for _, al := range a.Alerts {
		assert.False(t, ids[al.ID], "duplicate alert id %s", al.ID)
		ids[al.ID] = true
	}
	for _, f := range a.GeoJSON.Features {
		assert.NotEmpty(t, f.PropertyMustString("region_name"))
	}
}

func TestSimulateAcquisition(t *testing.T) {
	d := SimulateAcquisition("CARTOSAT-3", DefaultDataRegion, "0.25m", now)
	require.Len(t, d.DataPoints, maxDataPoints)

	b := DefaultDataRegion.Bounds
	assert.Equal(t, b.MinLat, d.DataPoints[0].Lat)
	assert.Equal(t, b.MinLng, d.DataPoints[0].Lng)
	for _, p := range d.DataPoints {
		assert.GreaterOrEqual(t, p.Value, 0.2)
		assert.Less(t, p.Value, 0.8)
		assert.LessOrEqual(t, p.Lng, b.MaxLng)
	}
	assert.InDelta(t, 15, d.CloudCover, 15)
	assert.InDelta(t, 0.85, d.Quality, 0.15)

	bad := DataRegion{Name: "inverted", Bounds: Bounds{MinLat: 10, MaxLat: 5, MinLng: 1, MaxLng: 2}}
	assert.Error(t, bad.Validate())
	assert.NoError(t, DefaultDataRegion.Validate())
}

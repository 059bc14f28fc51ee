package environment

import (
	"errors"
	"math/rand/v2"
	"time"
)

// Bounds is a lat/lng box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

// DataRegion names an area of interest.
type DataRegion struct {
	Name   string `json:"name"`
	Bounds Bounds `json:"bounds"`
}

// DefaultDataRegion is used when a request names no region.
var DefaultDataRegion = DataRegion{
	Name:   "Delhi NCR",
	Bounds: Bounds{MinLat: 28.4, MaxLat: 28.9, MinLng: 76.8, MaxLng: 77.4},
}

// Validate checks that the box is well formed.
func (r DataRegion) Validate() error {
	b := r.Bounds
	if b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng {
		return errors.New("region bounds must have min < max")
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLng < -180 || b.MaxLng > 180 {
		return errors.New("region bounds out of range")
	}
	return nil
}

// DataPoint is one simulated sample.
type DataPoint struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	Resolution string    `json:"resolution"`
	Band       string    `json:"band"`
	CloudCover float64   `json:"cloud_cover"`
	Quality    float64   `json:"quality"`
}

// SatelliteData is a simulated acquisition over a region.
type SatelliteData struct {
	Source          string      `json:"source"`
	Region          DataRegion  `json:"region"`
	AcquisitionDate time.Time   `json:"acquisitionDate"`
	CloudCover      float64     `json:"cloudCover"`
	Quality         float64     `json:"quality"`
	DataPoints      []DataPoint `json:"dataPoints"`
	Note            string      `json:"note"`
}

const (
	dataGridSide  = 20
	maxDataPoints = 100
)

// SimulateAcquisition samples a 20×20 grid over the region. Averages cover
// every sample; only the first 100 points are returned.
func SimulateAcquisition(source string, region DataRegion, resolution string, now time.Time) SatelliteData {
	var stream uint64
	for _, c := range source + region.Name {
		stream = stream*131 + uint64(c)
	}
	rng := rand.New(rand.NewPCG(uint64(now.Unix()/60), stream))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	b := region.Bounds
	points := make([]DataPoint, 0, dataGridSide*dataGridSide)
	var cloud, quality float64
	for i := 0; i < dataGridSide; i++ {
		lat := linspace(b.MinLat, b.MaxLat, dataGridSide, i)
		for j := 0; j < dataGridSide; j++ {
			p := DataPoint{
				Lat:        lat,
				Lng:        linspace(b.MinLng, b.MaxLng, dataGridSide, j),
				Value:      uniform(0.2, 0.8),
				Timestamp:  now,
				Resolution: resolution,
				Band:       "NIR",
				CloudCover: uniform(0, 30),
				Quality:    uniform(0.7, 1.0),
			}
			cloud += p.CloudCover
			quality += p.Quality
			points = append(points, p)
		}
	}
	n := float64(len(points))

	return SatelliteData{
		Source:          source,
		Region:          region,
		AcquisitionDate: now,
		CloudCover:      cloud / n,
		Quality:         quality / n,
		DataPoints:      points[:maxDataPoints],
		Note:            "Simulated acquisition; no archive credentials configured.",
	}
}

func linspace(lo, hi float64, n, i int) float64 {
	if n <= 1 {
		return lo
	}
	return lo + (hi-lo)*float64(i)/float64(n-1)
}

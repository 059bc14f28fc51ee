package telemetry

import (
	"math/rand/v2"
	"time"
)

// coveragePerSatelliteKm2 is the nominal ground footprint credited to each
// contributing satellite.
const coveragePerSatelliteKm2 = 1_000_000

// FusionMetrics aggregates telemetry across the active constellation.
type FusionMetrics struct {
	TotalCoverageAreaKm2  float64   `json:"total_coverage_area_km2"`
	AverageAltitudeKm     float64   `json:"average_altitude_km"`
	AverageVelocityKmH    float64   `json:"average_velocity_kmh"`
	FusionAccuracy        float64   `json:"fusion_accuracy"`
	DataThroughputMbps    float64   `json:"data_throughput_mbps"`
	ActiveSatellitesCount int       `json:"active_satellites_count"`
	Timestamp             time.Time `json:"timestamp"`
}

// Metrics computes fusion metrics. Empty input yields zero values.
func Metrics(samples []Telemetry, now time.Time) FusionMetrics {
	if len(samples) == 0 {
		return FusionMetrics{Timestamp: now}
	}

	var alt, vel, rate float64
	for _, s := range samples {
		alt += s.AltitudeKm
		vel += s.VelocityKmH
		rate += s.DataRateMbps
	}
	n := float64(len(samples))

	return FusionMetrics{
		TotalCoverageAreaKm2:  n * coveragePerSatelliteKm2,
		AverageAltitudeKm:     round(alt/n, 2),
		AverageVelocityKmH:    round(vel/n, 2),
		FusionAccuracy:        min(95, 70+3*n),
		DataThroughputMbps:    round(rate, 2),
		ActiveSatellitesCount: len(samples),
		Timestamp:             now,
	}
}

// FusedPoint is one confidence-weighted data point.
type FusedPoint struct {
	Lat                    float64   `json:"lat"`
	Lng                    float64   `json:"lng"`
	FusedValue             float64   `json:"fusedValue"`
	Confidence             float64   `json:"confidence"`
	ContributingSatellites []string  `json:"contributingSatellites"`
	SourcePoints           int       `json:"sourcePoints"`
	Method                 string    `json:"method"`
	Timestamp              time.Time `json:"timestamp"`
}

// FuseSummary describes a fusion run.
type FuseSummary struct {
	TotalPoints           int     `json:"totalPoints"`
	AvgConfidence         float64 `json:"avgConfidence"`
	AvgSatellitesPerPoint float64 `json:"avgSatellitesPerPoint"`
	CoverageImprovement   float64 `json:"coverageImprovement"`
	QualityImprovement    float64 `json:"qualityImprovement"`
}

// FuseResult is the response of a fusion run.
type FuseResult struct {
	Datasets  []string     `json:"datasets"`
	FusedData []FusedPoint `json:"fusedData"`
	Metrics   FuseSummary  `json:"metrics"`
	Timestamp time.Time    `json:"timestamp"`
}

// FusePoints is the number of points produced by Fuse.
const FusePoints = 50

// Fuse simulates fusing datasets around the Brahmaputra basin. The output is
// a deterministic function of seed and the dataset names.
func Fuse(seed uint64, datasets []string, now time.Time) FuseResult {
	if len(datasets) == 0 {
		datasets = []string{"test"}
	}
	var h uint64 = seed
	for _, d := range datasets {
		for _, c := range d {
			h = h*31 + uint64(c)
		}
	}
	rng := rand.New(rand.NewPCG(seed, h))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	sources := []string{"SAT-1", "SAT-2", "SAT-3"}

	points := make([]FusedPoint, FusePoints)
	var conf, sats float64
	for i := range points {
		contributing := sources[:2+rng.IntN(2)]
		p := FusedPoint{
			Lat:                    26.0 + (rng.Float64()-0.5)*2,
			Lng:                    92.0 + (rng.Float64()-0.5)*2,
			FusedValue:             uniform(0.3, 0.9),
			Confidence:             uniform(0.7, 0.99),
			ContributingSatellites: append([]string(nil), contributing...),
			SourcePoints:           2 + rng.IntN(3),
			Method:                 "weighted_average",
			Timestamp:              now,
		}
		conf += p.Confidence
		sats += float64(len(p.ContributingSatellites))
		points[i] = p
	}

	return FuseResult{
		Datasets:  datasets,
		FusedData: points,
		Metrics: FuseSummary{
			TotalPoints:           len(points),
			AvgConfidence:         round(conf/FusePoints, 4),
			AvgSatellitesPerPoint: round(sats/FusePoints, 2),
			CoverageImprovement:   round(uniform(25, 45), 2),
			QualityImprovement:    round(uniform(15, 35), 2),
		},
		Timestamp: now,
	}
}

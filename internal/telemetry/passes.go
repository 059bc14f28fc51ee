package telemetry

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/satdash/internal/orbit"
)

// Observer is a ground location.
type Observer struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
	AltKm  float64 `json:"alt_km"`
}

// DefaultObserver sits in the Brahmaputra valley.
var DefaultObserver = Observer{LatDeg: 26.0, LonDeg: 92.0}

// GroundTrackPoint is a sub-satellite position sampled during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Elevation float64   `json:"elevation"`
}

// PassEvent describes one pass of a satellite over the observer.
type PassEvent struct {
	SatelliteID      string             `json:"satellite_id"`
	SatelliteName    string             `json:"satellite_name"`
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	Visibility       string             `json:"visibility"`
	GroundTrack      []GroundTrackPoint `json:"ground_track,omitempty"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	SatelliteID string      `json:"satellite_id"`
	NORADID     int         `json:"norad_id"`
	Passes      []PassEvent `json:"passes"`
	Error       string      `json:"error,omitempty"`
}

// PositionFunc returns a satellite position at t.
type PositionFunc func(t time.Time, s orbit.Satellite) orbit.Position

// PassRequest holds the parameters of a prediction.
type PassRequest struct {
	Observer     Observer
	Satellites   []orbit.Satellite
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees
	MaxPasses    int
	Position     PositionFunc // defaults to orbit.Calculate
}

const (
	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 * time.Second
	minPassDuration = 10 * time.Second
)

// Visibility grades a pass by its maximum elevation.
func Visibility(maxElevation float64) string {
	switch {
	case maxElevation >= 60:
		return "Excellent"
	case maxElevation >= 40:
		return "Good"
	case maxElevation >= 20:
		return "Fair"
	default:
		return "Poor"
	}
}

// PredictPasses scans the simulated ground track of each satellite for
// windows above the observer's horizon. Each satellite is processed in its
// own goroutine, bounded by a semaphore.
func PredictPasses(ctx context.Context, req PassRequest) []SatellitePasses {
	if req.Position == nil {
		req.Position = orbit.Calculate
	}
	if req.MaxPasses <= 0 {
		req.MaxPasses = 5
	}
	if req.Horizon <= 0 {
		req.Horizon = 24 * time.Hour
	}

	results := make([]SatellitePasses, len(req.Satellites))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, s := range req.Satellites {
		wg.Add(1)
		go func(idx int, s orbit.Satellite) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = SatellitePasses{SatelliteID: s.ID, NORADID: s.NORADID, Error: "cancelled"}
				return
			}

			results[idx] = SatellitePasses{
				SatelliteID: s.ID,
				NORADID:     s.NORADID,
				Passes:      predictSatellite(ctx, req, s),
			}
		}(i, s)
	}

	wg.Wait()
	return results
}

// NextPasses returns the first pass of each satellite, earliest first.
func NextPasses(results []SatellitePasses) []PassEvent {
	var out []PassEvent
	for _, r := range results {
		if len(r.Passes) > 0 {
			out = append(out, r.Passes[0])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func predictSatellite(ctx context.Context, req PassRequest, s orbit.Satellite) []PassEvent {
	end := req.Start.Add(req.Horizon)
	var passes []PassEvent

	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if ctx.Err() != nil {
			return passes
		}

		if el, _ := lookAngles(req, s, t); el > 0 {
			pass, windowEnd := refine(ctx, req, s, t, end)
			if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDuration {
				passes = append(passes, *pass)
			}
			t = windowEnd.Add(coarseStep)
		} else {
			t = t.Add(coarseStep)
		}
	}
	return passes
}

// refine backs up one coarse step from a coarse hit and scans forward at
// fine resolution to find rise, culmination and set.
func refine(ctx context.Context, req PassRequest, s orbit.Satellite, coarseHit, windowEnd time.Time) (*PassEvent, time.Time) {
	t := coarseHit.Add(-coarseStep)
	if t.Before(req.Start) {
		t = req.Start
	}

	var (
		rise, set, maxTime time.Time
		maxEl, maxAz       float64
		wasAbove, rose     bool
		track              []GroundTrackPoint
	)

	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		el, az := lookAngles(req, s, t)
		above := el >= req.MinElevation

		if above && !wasAbove {
			rise = t
			rose = true
			maxEl, maxTime, maxAz = el, t, az
		}
		if above && rose {
			if el > maxEl {
				maxEl, maxTime, maxAz = el, t, az
			}
			if t.Sub(rise)%groundTrackStep == 0 {
				pos := req.Position(t, s)
				track = append(track, GroundTrackPoint{Time: t, Latitude: pos.Lat, Longitude: pos.Lng, Elevation: el})
			}
		}
		if !above && wasAbove && rose {
			set = t
			break
		}

		wasAbove = above
		t = t.Add(fineStep)
	}

	// Still above at the end of the window: close the pass there.
	if rose && set.IsZero() && wasAbove {
		set = t
	}
	if !rose || set.IsZero() {
		return nil, t
	}

	return &PassEvent{
		SatelliteID:      s.ID,
		SatelliteName:    s.Name,
		StartTime:        rise,
		MaxElevationTime: maxTime,
		EndTime:          set,
		DurationSeconds:  set.Sub(rise).Seconds(),
		MaxElevation:     round(maxEl, 2),
		AzimuthAtMax:     round(maxAz, 2),
		Visibility:       Visibility(maxEl),
		GroundTrack:      track,
	}, set
}

// lookAngles returns elevation and azimuth in degrees of s as seen by the
// observer at t. The simulated sub-satellite point is lifted to ECI at its
// altitude and projected onto the observer's topocentric frame.
func lookAngles(req PassRequest, s orbit.Satellite, t time.Time) (elevation, azimuth float64) {
	pos := req.Position(t, s)
	jd := julianDay(t)

	sat := satellite.LLAToECI(satellite.LatLong{
		Latitude:  pos.Lat * satellite.DEG2RAD,
		Longitude: pos.Lng * satellite.DEG2RAD,
	}, pos.AltitudeKm, jd)

	obs := satellite.LatLong{
		Latitude:  req.Observer.LatDeg * satellite.DEG2RAD,
		Longitude: req.Observer.LonDeg * satellite.DEG2RAD,
	}
	la := satellite.ECIToLookAngles(sat, obs, req.Observer.AltKm, jd)

	az := la.Az * satellite.RAD2DEG
	if az < 0 {
		az += 360
	}
	return la.El * satellite.RAD2DEG, az
}

func julianDay(t time.Time) float64 {
	t = t.UTC()
	jd := satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return jd + float64(t.Nanosecond())/86400e9
}

// Package catalog holds the set of tracked satellites.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/star/satdash/internal/orbit"
)

var (
	// ErrNotFound is returned when no satellite has the requested id.
	ErrNotFound = errors.New("satellite not found")
	// ErrDuplicateNORAD is returned when adding a NORAD id that is already tracked.
	ErrDuplicateNORAD = errors.New("satellite with this NORAD ID already exists")
	// ErrInvalid is returned for add requests missing a name or NORAD id.
	ErrInvalid = errors.New("invalid satellite")
)

var palette = []string{"#00f0ff", "#ff00f0", "#f0ff00", "#ff7000", "#60A5FA", "#34D399", "#F59E0B", "#EC4899"}

// NewSatellite is an add request. Zero orbital fields are derived from the
// NORAD id.
type NewSatellite struct {
	Name           string   `json:"name"`
	NORADID        int      `json:"norad_id"`
	Color          string   `json:"color,omitempty"`
	AltitudeKm     float64  `json:"altitude_km,omitempty"`
	InclinationDeg float64  `json:"inclination_deg,omitempty"`
	PeriodMin      float64  `json:"period_min,omitempty"`
	OrbitOffset    *float64 `json:"orbit_offset,omitempty"`
	Geostationary  bool     `json:"geostationary,omitempty"`
	FixedLongitude *float64 `json:"fixed_longitude,omitempty"`
}

// Catalog provides thread-safe access to the tracked satellites. Readers get
// the current snapshot without locking; writers are serialized.
type Catalog struct {
	sats    atomic.Pointer[[]orbit.Satellite]
	version atomic.Uint64
	mu      sync.Mutex
	nextID  int
}

// New creates a catalog seeded with initial.
func New(initial []orbit.Satellite) *Catalog {
	c := &Catalog{nextID: len(initial) + 1}
	sats := append([]orbit.Satellite(nil), initial...)
	c.sats.Store(&sats)
	return c
}

// List returns a copy of all satellites in insertion order.
func (c *Catalog) List() []orbit.Satellite {
	return append([]orbit.Satellite(nil), *c.sats.Load()...)
}

// Active returns the satellites that are currently tracked.
func (c *Catalog) Active() []orbit.Satellite {
	all := *c.sats.Load()
	out := make([]orbit.Satellite, 0, len(all))
	for _, s := range all {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Version increases on every successful Add or Remove.
func (c *Catalog) Version() uint64 {
	return c.version.Load()
}

// Get returns the satellite with the given id.
func (c *Catalog) Get(id string) (orbit.Satellite, error) {
	for _, s := range *c.sats.Load() {
		if s.ID == id {
			return s, nil
		}
	}
	return orbit.Satellite{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add starts tracking a new satellite and returns it with its assigned id.
func (c *Catalog) Add(req NewSatellite) (orbit.Satellite, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.NORADID <= 0 {
		return orbit.Satellite{}, fmt.Errorf("%w: name and positive norad_id are required", ErrInvalid)
	}
	if req.Geostationary && req.FixedLongitude != nil && (*req.FixedLongitude < -180 || *req.FixedLongitude > 180) {
		return orbit.Satellite{}, fmt.Errorf("%w: fixed_longitude out of range", ErrInvalid)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := *c.sats.Load()
	for _, s := range current {
		if s.NORADID == req.NORADID {
			return orbit.Satellite{}, fmt.Errorf("%w: %d", ErrDuplicateNORAD, req.NORADID)
		}
	}

	sat := derive(req)
	sat.ID = fmt.Sprintf("sat-%d", c.nextID)
	c.nextID++

	next := make([]orbit.Satellite, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, sat)
	c.sats.Store(&next)
	c.version.Add(1)

	return sat, nil
}

// Remove stops tracking the satellite with the given id and returns it.
func (c *Catalog) Remove(id string) (orbit.Satellite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := *c.sats.Load()
	for i, s := range current {
		if s.ID != id {
			continue
		}
		next := make([]orbit.Satellite, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		c.sats.Store(&next)
		c.version.Add(1)
		return s, nil
	}
	return orbit.Satellite{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// derive fills orbital parameters the request left empty. The values are a
// deterministic function of the NORAD id so re-adding a satellite places it
// on the same track.
func derive(req NewSatellite) orbit.Satellite {
	n := req.NORADID
	sat := orbit.Satellite{
		NORADID:        n,
		Name:           req.Name,
		Color:          req.Color,
		AltitudeKm:     req.AltitudeKm,
		InclinationDeg: req.InclinationDeg,
		PeriodMin:      req.PeriodMin,
		Geostationary:  req.Geostationary,
		FixedLongitude: req.FixedLongitude,
		Active:         true,
	}
	if sat.Color == "" {
		sat.Color = palette[n%len(palette)]
	}
	if req.OrbitOffset != nil {
		sat.OrbitOffset = *req.OrbitOffset
	} else {
		sat.OrbitOffset = float64((n * 37) % 360)
	}
	if sat.Geostationary {
		if sat.AltitudeKm == 0 {
			sat.AltitudeKm = 35786
		}
		return sat
	}
	if sat.AltitudeKm == 0 {
		sat.AltitudeKm = float64(400 + (n%17)*25)
	}
	if sat.InclinationDeg == 0 {
		sat.InclinationDeg = float64(30 + n%70)
	}
	return sat
}

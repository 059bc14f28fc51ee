// Package zones holds the risk zones rendered on the map.
package zones

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Severity labels a risk zone.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RiskZone is a circular area with a severity label.
type RiskZone struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	RadiusKm float64  `json:"radius_km"`
	Severity Severity `json:"severity"`
}

// Validate checks coordinates, radius and severity.
func (z RiskZone) Validate() error {
	if z.Lat < -90 || z.Lat > 90 || z.Lng < -180 || z.Lng > 180 {
		return fmt.Errorf("zone %q: coordinates out of range", z.ID)
	}
	if z.RadiusKm <= 0 {
		return fmt.Errorf("zone %q: radius must be positive", z.ID)
	}
	if !z.Severity.Valid() {
		return fmt.Errorf("zone %q: unknown severity %q", z.ID, z.Severity)
	}
	return nil
}

// Defaults returns the zones shown when no demo has replaced them.
func Defaults() []RiskZone {
	return []RiskZone{
		{ID: "zone-brahmaputra", Name: "Brahmaputra Basin", Lat: 26.2, Lng: 92.0, RadiusKm: 120, Severity: SeverityHigh},
		{ID: "zone-kerala", Name: "Kerala Coast", Lat: 10.0, Lng: 76.5, RadiusKm: 80, Severity: SeverityMedium},
		{ID: "zone-uttarakhand", Name: "Uttarakhand Himalaya", Lat: 30.5, Lng: 79.5, RadiusKm: 90, Severity: SeverityMedium},
		{ID: "zone-sundarbans", Name: "Sundarbans Delta", Lat: 21.9, Lng: 89.0, RadiusKm: 70, Severity: SeverityLow},
	}
}

// Set is one published zone snapshot.
type Set struct {
	Version   uint64     `json:"version"`
	Source    string     `json:"source"`
	UpdatedAt time.Time  `json:"updated_at"`
	Zones     []RiskZone `json:"zones"`
}

// Store holds the current zone snapshot. Replacement is wholesale and last
// write wins.
type Store struct {
	current  atomic.Pointer[Set]
	version  atomic.Uint64
	onChange func(Set)
}

// NewStore creates a store holding Defaults.
func NewStore() *Store {
	s := &Store{}
	s.set(Defaults(), "default")
	return s
}

// OnChange registers fn to receive every replacement. It must be called
// before the store is shared.
func (s *Store) OnChange(fn func(Set)) {
	s.onChange = fn
}

// Current returns the current snapshot.
func (s *Store) Current() Set {
	return *s.current.Load()
}

// Replace swaps in zones, tagged with source. Invalid zones are rejected
// and the snapshot is left unchanged.
func (s *Store) Replace(zones []RiskZone, source string) (Set, error) {
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return s.Current(), err
		}
	}
	return s.set(zones, source), nil
}

// Reset restores Defaults.
func (s *Store) Reset() Set {
	return s.set(Defaults(), "default")
}

func (s *Store) set(zones []RiskZone, source string) Set {
	set := Set{
		Version:   s.version.Add(1),
		Source:    source,
		UpdatedAt: time.Now().UTC(),
		Zones:     append([]RiskZone(nil), zones...),
	}
	s.current.Store(&set)
	if s.onChange != nil {
		s.onChange(set)
	}
	return set
}

package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := New(DefaultSatellites())

	sats := c.List()
	require.Len(t, sats, 6)
	assert.Len(t, c.Active(), 6)

	seen := make(map[int]bool)
	geo := 0
	for _, s := range sats {
		assert.False(t, seen[s.NORADID], "duplicate NORAD id %d", s.NORADID)
		seen[s.NORADID] = true
		if s.Geostationary {
			geo++
			require.NotNil(t, s.FixedLongitude, "%s: geostationary without fixed longitude", s.Name)
		}
	}
	assert.Equal(t, 1, geo)
}

func TestAddAssignsIDAndDerivesOrbit(t *testing.T) {
	c := New(DefaultSatellites())

	sat, err := c.Add(NewSatellite{Name: "NOAA 18", NORADID: 28654})
	require.NoError(t, err)

	assert.Equal(t, "sat-7", sat.ID)
	assert.True(t, sat.Active)
	assert.NotEmpty(t, sat.Color)
	assert.Greater(t, sat.AltitudeKm, 0.0)
	assert.Greater(t, sat.InclinationDeg, 0.0)

	again := derive(NewSatellite{Name: "NOAA 18", NORADID: 28654})
	assert.Equal(t, sat.OrbitOffset, again.OrbitOffset)
	assert.Equal(t, sat.AltitudeKm, again.AltitudeKm)

	got, err := c.Get("sat-7")
	require.NoError(t, err)
	assert.Equal(t, sat, got)
	assert.Equal(t, uint64(1), c.Version())
}

func TestAddErrors(t *testing.T) {
	tests := []struct {
		name string
		req  NewSatellite
		want error
	}{
		{"duplicate norad", NewSatellite{Name: "ISS again", NORADID: 25544}, ErrDuplicateNORAD},
		{"missing name", NewSatellite{NORADID: 99999}, ErrInvalid},
		{"blank name", NewSatellite{Name: "   ", NORADID: 99999}, ErrInvalid},
		{"zero norad", NewSatellite{Name: "x"}, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultSatellites())
			_, err := c.Add(tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Add error = %v, want %v", err, tt.want)
			}
			if len(c.List()) != 6 {
				t.Errorf("catalog changed after failed add")
			}
		})
	}
}

func TestRemove(t *testing.T) {
	c := New(DefaultSatellites())

	removed, err := c.Remove("sat-2")
	require.NoError(t, err)
	assert.Equal(t, "HUBBLE", removed.Name)
	assert.Len(t, c.List(), 5)

	_, err = c.Get("sat-2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Remove("sat-2")
	assert.ErrorIs(t, err, ErrNotFound)

	// Ids are never reused after a removal.
	sat, err := c.Add(NewSatellite{Name: "TerraSAR-X", NORADID: 31698})
	require.NoError(t, err)
	assert.Equal(t, "sat-7", sat.ID)
}

func TestListIsACopy(t *testing.T) {
	c := New(DefaultSatellites())
	sats := c.List()
	sats[0].Name = "mutated"

	got, err := c.Get("sat-1")
	require.NoError(t, err)
	assert.Equal(t, "ISS (ZARYA)", got.Name)
}

func TestConcurrentAdd(t *testing.T) {
	c := New(nil)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = c.Add(NewSatellite{Name: "sat", NORADID: 1000 + n%10})
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.List(), 10)
}

func TestFindISRO(t *testing.T) {
	s, ok := FindISRO("cartosat-3")
	require.True(t, ok)
	assert.Equal(t, "44804", s.NORADID)

	_, ok = FindISRO("SPUTNIK")
	assert.False(t, ok)
	assert.Len(t, ISROSatellites(), 5)
}

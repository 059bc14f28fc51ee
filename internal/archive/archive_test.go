package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var base = time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(Config{Path: filepath.Join(t.TempDir(), "history.sqlite3")}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func snap(seq uint64, at time.Time, ids ...string) *tracker.Snapshot {
	s := &tracker.Snapshot{Seq: seq, Timestamp: at}
	for i, id := range ids {
		s.Positions = append(s.Positions, orbit.Position{
			SatelliteID: id,
			Lat:         float64(seq) + float64(i),
			Lng:         float64(seq) * 2,
			AltitudeKm:  408,
			VelocityKmS: 7.66,
			Timestamp:   at,
		})
	}
	return s
}

func TestRecordAndHistory(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Publish(ctx, snap(uint64(i+1), base.Add(time.Duration(i)*time.Second), "sat-1", "sat-2")))
	}

	all, err := r.History(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.Before(all[i-1].Timestamp), "history must be oldest first")
	}

	one, err := r.History(ctx, Query{SatelliteID: "sat-2", Since: base.Add(2 * time.Second)})
	require.NoError(t, err)
	require.Len(t, one, 3)
	assert.Equal(t, "sat-2", one[0].SatelliteID)
	assert.True(t, one[0].Timestamp.Equal(base.Add(2*time.Second)))
	assert.InDelta(t, 4.0, one[0].Lat, 1e-12)

	last, err := r.History(ctx, Query{SatelliteID: "sat-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.True(t, last[1].Timestamp.Equal(base.Add(4*time.Second)), "limit keeps the newest rows")
}

func TestHistoryValidation(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	_, err := r.History(ctx, Query{Limit: MaxLimit + 1})
	assert.True(t, errors.Is(err, ErrInvalidQuery))

	_, err = r.History(ctx, Query{Since: base, Until: base.Add(-time.Second)})
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestPrune(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()
	r.config.Retention = time.Minute
	r.now = func() time.Time { return base.Add(90 * time.Second) }

	require.NoError(t, r.Publish(ctx, snap(1, base, "sat-1")))
	require.NoError(t, r.Publish(ctx, snap(2, base.Add(60*time.Second), "sat-1")))

	n, err := r.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := r.History(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].Timestamp.Equal(base.Add(60*time.Second)))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{}, testLogger())
	assert.Error(t, err)
}

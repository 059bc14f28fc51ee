// Package archive records published positions into SQLite so the dashboard
// can replay recent ground tracks.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	seq          INTEGER NOT NULL,
	satellite_id TEXT    NOT NULL,
	lat          REAL    NOT NULL,
	lng          REAL    NOT NULL,
	altitude_km  REAL    NOT NULL,
	velocity_kms REAL    NOT NULL,
	ts           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS positions_sat_ts ON positions (satellite_id, ts);
`

// Query limits.
const (
	DefaultLimit = 500
	MaxLimit     = 5000
)

// ErrInvalidQuery is returned for malformed history queries.
var ErrInvalidQuery = errors.New("invalid history query")

// Config holds archive settings.
type Config struct {
	Path          string        // SQLite file; empty disables the archive
	Retention     time.Duration // rows older than this are pruned (default 1h)
	PruneInterval time.Duration // default 1m
}

// Recorder is a tracker sink that stores every published position.
type Recorder struct {
	db     *sql.DB
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// Open creates or opens the archive database.
func Open(config Config, logger *slog.Logger) (*Recorder, error) {
	if config.Path == "" {
		return nil, errors.New("archive path is empty")
	}
	if config.Retention <= 0 {
		config.Retention = time.Hour
	}
	if config.PruneInterval <= 0 {
		config.PruneInterval = time.Minute
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", config.Path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Recorder{db: db, config: config, now: time.Now, logger: logger}, nil
}

// Close closes the database.
func (r *Recorder) Close() error { return r.db.Close() }

// Name identifies the recorder as a tracker sink.
func (r *Recorder) Name() string { return "archive" }

// Publish inserts every position of snap in one transaction.
func (r *Recorder) Publish(ctx context.Context, snap *tracker.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO positions
		(seq, satellite_id, lat, lng, altitude_km, velocity_kms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Positions {
		if _, err := stmt.ExecContext(ctx, snap.Seq, p.SatelliteID, p.Lat, p.Lng,
			p.AltitudeKm, p.VelocityKmS, p.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("archive insert %s: %w", p.SatelliteID, err)
		}
	}
	return tx.Commit()
}

// Query selects archived positions.
type Query struct {
	SatelliteID string    // empty selects every satellite
	Since       time.Time // inclusive; zero means no lower bound
	Until       time.Time // inclusive; zero means no upper bound
	Limit       int       // 0 selects DefaultLimit
}

// History returns archived positions ordered by time, oldest first.
func (r *Recorder) History(ctx context.Context, q Query) ([]orbit.Position, error) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 0 || q.Limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit must be 1-%d", ErrInvalidQuery, MaxLimit)
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return nil, fmt.Errorf("%w: until before since", ErrInvalidQuery)
	}

	sqlText := `SELECT satellite_id, lat, lng, altitude_km, velocity_kms, ts FROM positions WHERE 1=1`
	var args []any
	if q.SatelliteID != "" {
		sqlText += ` AND satellite_id = ?`
		args = append(args, q.SatelliteID)
	}
	if !q.Since.IsZero() {
		sqlText += ` AND ts >= ?`
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Until.IsZero() {
		sqlText += ` AND ts <= ?`
		args = append(args, q.Until.UnixMilli())
	}
	// Newest rows win the limit; the result is reversed to oldest first.
	sqlText += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []orbit.Position
	for rows.Next() {
		var p orbit.Position
		var ts int64
		if err := rows.Scan(&p.SatelliteID, &p.Lat, &p.Lng, &p.AltitudeKm, &p.VelocityKmS, &ts); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read archive rows: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Prune deletes rows older than the retention window and reports how many
// were removed.
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.config.Retention).UnixMilli()
	res, err := r.db.ExecContext(ctx, `DELETE FROM positions WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	return res.RowsAffected()
}

// Run prunes on PruneInterval until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Prune(ctx)
			if err != nil {
				r.logger.Warn("archive prune failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("archive pruned", "rows", n)
			}
		}
	}
}

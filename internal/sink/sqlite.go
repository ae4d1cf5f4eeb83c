package sink

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/fieldwave/mmwave-ingest/internal/decode"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is an embedded-schema RecordSink. Every run tags its rows with the
// runID passed to NewSQLite so captures from distinct invocations of the same
// database file can be told apart.
type SQLite struct {
	db    *sql.DB
	runID string
	stmt  *sql.Stmt
}

// NewSQLite opens (creating if absent) a sqlite database at path, applies
// pending migrations, and returns a sink that tags every row with runID.
func NewSQLite(path, runID string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite sink %q: %w", path, err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	stmt, err := db.Prepare(`INSERT INTO records
		(run_id, timestamp, source_id, kind, frame_number, bearing_deg, range_cm,
		 velocity_or_intensity, x, y, z, peak_val, range_idx, doppler_idx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing sqlite insert: %w", err)
	}

	return &SQLite{db: db, runID: runID, stmt: stmt}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("preparing embedded migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running sqlite migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Emit(ts time.Time, r decode.Record) error {
	switch r.Kind {
	case decode.KindDetectedObject:
		o := r.DetectedObject
		_, err := s.stmt.Exec(s.runID, tsSeconds(ts), o.SourceID, "detected_object",
			o.FrameNumber, o.BearingDeg, o.RangeCm, o.VelocityMps,
			o.X, o.Y, o.Z, o.PeakVal, o.RangeIdx, o.DopplerIdx)
		return err
	case decode.KindNoiseProfile:
		n := r.NoiseProfile
		_, err := s.stmt.Exec(s.runID, tsSeconds(ts), n.SourceID, "noise_profile",
			0, 0, 0, n.AvgLevel, 0, 0, 0, 0, 0, 0)
		return err
	case decode.KindAzimuthHeatmap:
		h := r.AzimuthHeatmap
		_, err := s.stmt.Exec(s.runID, tsSeconds(ts), h.SourceID, "azimuth_heatmap",
			0, 0, 0, h.MaxIntensity, 0, 0, 0, 0, 0, 0)
		return err
	default:
		return fmt.Errorf("sqlite sink: unknown record kind %v", r.Kind)
	}
}

func (s *SQLite) Flush() error { return nil }

func (s *SQLite) Close() error {
	s.stmt.Close()
	return s.db.Close()
}

func tsSeconds(ts time.Time) float64 {
	return float64(ts.UnixNano()) / 1e9
}

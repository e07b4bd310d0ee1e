package sink

// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

// SQLite persists results to a sqlite database, one row per anchor. Rows are
// keyed by anchor and written with INSERT OR REPLACE, so a batch replayed
// after a crash between flush and record converges instead of duplicating.
type SQLite struct {
	db       *sql.DB
	stmt     *sql.Stmt
	progress *Progress
	logger   *slog.Logger
}

type sqliteConfig struct {
	Logger *slog.Logger
}

type SQLiteOption func(*sqliteConfig)

func WithSQLiteLogger(logger *slog.Logger) SQLiteOption {
	return func(c *sqliteConfig) { c.Logger = logger }
}

// NewSQLite opens (or creates) the results database at path. The sink takes
// ownership of the progress record and closes it with the database.
func NewSQLite(path string, progress *Progress, opts ...SQLiteOption) (s *SQLite, err error) {
	cfg := sqliteConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			geometry TEXT,
			attributes TEXT,
			PRIMARY KEY (x, y)
		);
	`)
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("INSERT OR REPLACE INTO results (x, y, geometry, attributes) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &SQLite{db: db, stmt: stmt, progress: progress, logger: cfg.Logger}, nil
}

func (s *SQLite) Close() error {
	return errors.Join(s.stmt.Close(), s.db.Close(), s.progress.Close())
}

func (s *SQLite) LoadProgress() (grid.AnchorSet, error) {
	return s.progress.Load()
}

// Write flushes the batch in one transaction, then records its anchors.
func (s *SQLite) Write(ctx context.Context, batch []raster.Result) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	for _, result := range batch {
		geometry := ""
		if result.Geometry != nil {
			geometry = wkt.MarshalString(result.Geometry)
		}
		attributes, err := json.Marshal(result.Attributes)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}

		if _, err := tx.Stmt(s.stmt).Exec(result.Anchor.X, result.Anchor.Y, geometry, string(attributes)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.logger.Debug("tileproc: batch flushed", "results", len(batch))

	anchors := make([]grid.Anchor, len(batch))
	for i, result := range batch {
		anchors[i] = result.Anchor
	}
	if err := s.progress.Append(anchors); err != nil {
		return fmt.Errorf("%w: progress record: %w", ErrWrite, err)
	}

	return nil
}

package sink_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
	"github.com/osmundr/go-tileproc/sink"
)

func openSQLite(t *testing.T, dir string) *sink.SQLite {
	t.Helper()

	progress, err := sink.OpenProgress(filepath.Join(dir, "progress.ndjson"))
	if err != nil {
		t.Fatalf("OpenProgress failed: %v", err)
	}
	s, err := sink.NewSQLite(filepath.Join(dir, "results.db"), progress)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	return s
}

func TestSQLiteWrite(t *testing.T) {
	dir := t.TempDir()
	s := openSQLite(t, dir)

	batch := []raster.Result{
		{
			Anchor:     grid.Anchor{X: 0, Y: 0},
			Geometry:   grid.Region{MinX: 0, MinY: 0, MaxX: 128, MaxY: 128}.ToGeometry(),
			Attributes: map[string]string{"class": "building"},
		},
		{
			Anchor: grid.Anchor{X: 128, Y: 0},
		},
	}
	if err := s.Write(context.Background(), batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	completed, err := s.LoadProgress()
	if err != nil {
		t.Fatalf("LoadProgress failed: %v", err)
	}
	if got, want := len(completed), 2; got != want {
		t.Errorf("LoadProgress returned %d anchors, want %d", got, want)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM results").Scan(&count); err != nil {
		t.Fatalf("QueryRow failed: %v", err)
	}
	if count != 2 {
		t.Errorf("results table has %d rows, want 2", count)
	}

	var geometry string
	err = db.QueryRow("SELECT geometry FROM results WHERE x = 0 AND y = 0").Scan(&geometry)
	if err != nil {
		t.Fatalf("QueryRow failed: %v", err)
	}
	if geometry == "" {
		t.Error("stored geometry is empty")
	}
}

func TestSQLiteReplayConverges(t *testing.T) {
	dir := t.TempDir()
	batch := []raster.Result{{
		Anchor:     grid.Anchor{X: 0, Y: 0},
		Attributes: map[string]string{"pass": "first"},
	}}

	s := openSQLite(t, dir)
	if err := s.Write(context.Background(), batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Writing the same anchor again, as a crash replay would, must replace
	// the row rather than duplicate it.
	batch[0].Attributes["pass"] = "second"
	s = openSQLite(t, dir)
	if err := s.Write(context.Background(), batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM results WHERE x = 0 AND y = 0").Scan(&count); err != nil {
		t.Fatalf("QueryRow failed: %v", err)
	}
	if count != 1 {
		t.Errorf("anchor has %d rows, want 1", count)
	}

	var attributes string
	if err := db.QueryRow("SELECT attributes FROM results WHERE x = 0 AND y = 0").Scan(&attributes); err != nil {
		t.Fatalf("QueryRow failed: %v", err)
	}
	if want := `{"pass":"second"}`; attributes != want {
		t.Errorf("attributes = %s, want %s", attributes, want)
	}
}

func TestSQLiteWriteEmptyBatch(t *testing.T) {
	s := openSQLite(t, t.TempDir())
	defer s.Close()

	if err := s.Write(context.Background(), nil); err != nil {
		t.Errorf("Write(empty) failed: %v", err)
	}
}

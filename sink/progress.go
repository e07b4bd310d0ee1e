package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/osmundr/go-tileproc/grid"
)

// progressEntry is one line of the progress record.
type progressEntry struct {
	X   int       `json:"x"`
	Y   int       `json:"y"`
	Run string    `json:"run,omitempty"`
	At  time.Time `json:"at"`
}

// Progress is the durable record of completed anchors: an append-only file of
// newline-delimited JSON entries, one anchor per line. It is never rewritten
// wholesale; Append syncs the file before returning.
type Progress struct {
	path string
	file *os.File
	run  string
}

type progressConfig struct {
	Run string
}

type ProgressOption func(*progressConfig)

// WithRun stamps every appended entry with a run identifier.
func WithRun(run string) ProgressOption {
	return func(c *progressConfig) { c.Run = run }
}

// OpenProgress opens (or creates) the progress record at path for appending.
// A torn trailing line left by a crash mid-append is truncated away before
// any new entry is written.
func OpenProgress(path string, opts ...ProgressOption) (*Progress, error) {
	var cfg progressConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := truncateTornLine(path); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &Progress{path: path, file: file, run: cfg.Run}, nil
}

// truncateTornLine drops a trailing partial line, which can only be the
// remnant of an interrupted append.
func truncateTornLine(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}

	end := bytes.LastIndexByte(data, '\n') + 1
	return os.Truncate(path, int64(end))
}

func (p *Progress) Close() error {
	return p.file.Close()
}

// Path returns the file path of the record.
func (p *Progress) Path() string { return p.path }

// SetRun sets the run identifier stamped on subsequent entries.
func (p *Progress) SetRun(run string) { p.run = run }

// Load reads the record and returns the set of completed anchors.
func (p *Progress) Load() (grid.AnchorSet, error) {
	file, err := os.Open(p.path)
	if os.IsNotExist(err) {
		return grid.AnchorSet{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	completed := grid.AnchorSet{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry progressEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("tileproc: invalid progress record %q: %w", p.path, err)
		}
		completed.Add(grid.Anchor{X: entry.X, Y: entry.Y})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return completed, nil
}

// Append durably records the anchors as completed. The entries reach stable
// storage before Append returns.
func (p *Progress) Append(anchors []grid.Anchor) error {
	if len(anchors) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var buffer bytes.Buffer
	for _, anchor := range anchors {
		line, err := json.Marshal(progressEntry{X: anchor.X, Y: anchor.Y, Run: p.run, At: now})
		if err != nil {
			return err
		}
		buffer.Write(line)
		buffer.WriteByte('\n')
	}

	if _, err := p.file.Write(buffer.Bytes()); err != nil {
		return err
	}
	return p.file.Sync()
}

// Package stats persists one before/after size record per optimized file.
//
// Records are keyed by file path. Re-optimizing a path overwrites its
// row, so totals reflect the latest run per file, not a running sum.
// Stats are advisory: a crash between encode and Record leaves the file
// optimized but unaccounted.
package stats

import (
	"context"
	"time"
)

// Record is one row of the stats table.
type Record struct {
	AttachmentID  int64
	FilePath      string
	OriginalSize  uint64
	OptimizedSize uint64
	SavedBytes    uint64
	OptimizedAt   time.Time
}

// Summary aggregates all rows.
type Summary struct {
	TotalFiles    int64
	TotalSaved    uint64
	TotalOriginal uint64
}

// SavedPercent is TotalSaved relative to TotalOriginal, or 0.
func (s Summary) SavedPercent() float64 {
	if s.TotalOriginal == 0 {
		return 0
	}
	return float64(s.TotalSaved) / float64(s.TotalOriginal) * 100
}

// Recorder is what the engine needs from a stats store.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Store is the full stats store used by the CLI.
type Store interface {
	Recorder
	Get(ctx context.Context, path string) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Summary(ctx context.Context) (Summary, error)
	Close() error
}

// Package report writes a JSON summary of a bulk run.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AnyUserName/imgopt/internal/batch"
	"github.com/AnyUserName/imgopt/internal/hasher"
)

// New creates an empty report for root.
func New(root, preset string) *Report {
	return &Report{
		Version:     SupportedVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Root:        root,
		Preset:      preset,
		Attachments: make(map[string]Entry),
	}
}

// Add records one batch outcome.
func (r *Report) Add(o batch.Outcome) {
	e := Entry{ID: o.ID, Skipped: o.Skipped}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	for _, res := range o.Results {
		f := File{
			Path:         r.rel(res.Path),
			Format:       string(res.Format),
			Backend:      res.Backend,
			OriginalSize: res.OriginalSize,
			NewSize:      res.NewSize,
			SavedPercent: res.SavedPercent,
			Restored:     res.Restored,
		}
		if h, err := hasher.FileHash(res.Path, 16); err == nil {
			f.Hash = h
		}
		if res.WebPPath != "" {
			f.WebP = r.rel(res.WebPPath)
		}
		e.Files = append(e.Files, f)
	}
	r.Attachments[strconv.FormatInt(o.ID, 10)] = e
}

func (r *Report) rel(path string) string {
	if rel, err := filepath.Rel(r.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// ComputeStats recalculates aggregate statistics from entries.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalAttachments = len(r.Attachments)
	for _, e := range r.Attachments {
		if e.Skipped {
			s.Skipped++
		}
		if e.Error != "" {
			s.Failed++
		}
		s.TotalFiles += len(e.Files)
		for _, f := range e.Files {
			s.TotalInputBytes += f.OriginalSize
			s.TotalOutputBytes += f.NewSize
			s.TotalSaved += f.OriginalSize - f.NewSize
		}
	}
	r.Stats = s
}

// WriteJSON serializes the report to a JSON file. Map keys are sorted by
// encoding/json, so output is stable.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

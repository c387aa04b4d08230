package report

// Report is the JSON summary of one bulk run.
type Report struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Root        string           `json:"root"`
	Preset      string           `json:"preset,omitempty"`
	RunInfo     *RunInfo         `json:"run_info,omitempty"`
	Attachments map[string]Entry `json:"attachments"` // keyed by attachment ID
	Stats       Stats            `json:"stats"`
}

// RunInfo captures run parameters for diagnostics.
type RunInfo struct {
	Workers  int     `json:"workers"`
	Seconds  float64 `json:"seconds"`
	Backends string  `json:"backends"`
}

// Entry is one attachment's outcome.
type Entry struct {
	ID      int64  `json:"id"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
	Files   []File `json:"files,omitempty"`
}

// File is one re-encoded file.
type File struct {
	Path         string  `json:"path"` // relative to root
	Format       string  `json:"format"`
	Backend      string  `json:"backend"`
	OriginalSize uint64  `json:"original_size"`
	NewSize      uint64  `json:"new_size"`
	SavedPercent float64 `json:"saved_percent"`
	Restored     bool    `json:"restored,omitempty"`
	Hash         string  `json:"hash,omitempty"` // xxhash64 of the file after the run
	WebP         string  `json:"webp,omitempty"`
}

// Stats aggregates the run.
type Stats struct {
	TotalAttachments int    `json:"total_attachments"`
	TotalFiles       int    `json:"total_files"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	TotalInputBytes  uint64 `json:"total_input_bytes"`
	TotalOutputBytes uint64 `json:"total_output_bytes"`
	TotalSaved       uint64 `json:"total_saved"`
}

// SupportedVersion is the current schema version.
const SupportedVersion = 1

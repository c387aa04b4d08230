// Package engine re-encodes image files in place.
//
// One OptimizeFile call resolves the format, backs up the original,
// walks the backend chain until one succeeds, rolls back if the output
// grew, records the sizes and optionally writes a WebP derivative.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/AnyUserName/imgopt/internal/backup"
	"github.com/AnyUserName/imgopt/internal/config"
	"github.com/AnyUserName/imgopt/internal/derivative"
	"github.com/AnyUserName/imgopt/internal/encoder"
	"github.com/AnyUserName/imgopt/internal/format"
	"github.com/AnyUserName/imgopt/internal/library"
	"github.com/AnyUserName/imgopt/internal/metrics"
	"github.com/AnyUserName/imgopt/internal/stats"
)

// ErrEncodeFailure is returned when no backend could re-encode a file.
// It wraps every backend's error.
var ErrEncodeFailure = errors.New("encode failed")

// ErrNoSource is returned by OptimizeAttachment on an engine built
// without an AttachmentSource.
var ErrNoSource = errors.New("no attachment source")

// AttachmentSource resolves an attachment ID to its files.
type AttachmentSource interface {
	Lookup(ctx context.Context, id int64) (library.Attachment, error)
}

// Result describes one re-encoded file.
type Result struct {
	Path         string
	Format       format.Format
	Backend      string
	OriginalSize uint64
	NewSize      uint64
	SavedBytes   uint64
	SavedPercent float64
	// Restored is set when the output was not smaller and the run's input
	// was put back.
	Restored bool
	// WebPPath is the derivative written alongside, if any.
	WebPPath string
}

// Engine runs OptimizeFile. It is safe for concurrent use.
type Engine struct {
	opts        encoder.Options
	convertWebP bool

	registry *encoder.Registry
	backups  *backup.Manager
	stats    stats.Recorder
	webp     *derivative.Generator
	source   AttachmentSource
	log      *slog.Logger
	now      func() time.Time

	locks pathLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSource sets the attachment source used by OptimizeAttachment.
func WithSource(s AttachmentSource) Option {
	return func(e *Engine) { e.source = s }
}

// WithClock overrides the timestamp written to stats.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine from a resolved config. rec may be nil to skip
// stats.
func New(cfg config.Config, reg *encoder.Registry, rec stats.Recorder, opts ...Option) *Engine {
	cfg.Clamp()

	e := &Engine{
		opts: encoder.Options{
			CompressionLevel: cfg.CompressionLevel,
			JPEGQuality:      cfg.JPEGQuality,
			WebPQuality:      cfg.WebPQuality,
			Progressive:      cfg.ProgressiveJPEG,
		},
		convertWebP: cfg.ConvertWebP,
		registry:    reg,
		backups:     backup.New(cfg.BackupOriginals),
		stats:       rec,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.webp = derivative.New(reg.WebPWriters(), cfg.WebPQuality, e.log)
	return e
}

// OptimizeFile re-encodes path in place. It returns format.ErrNotApplicable
// for files it does not handle, without writing anything, and
// ErrEncodeFailure when every backend failed. A grown output is not an
// error: the result reports zero savings and Restored.
//
// path is made absolute first; stats rows, locks and Result.Path all use
// the absolute form.
func (e *Engine) OptimizeFile(ctx context.Context, path string, attachmentID int64) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}
	path = abs

	unlock := e.locks.Lock(path)
	defer unlock()

	start := time.Now()

	t, err := format.Resolve(path)
	if err != nil {
		e.log.Debug("skipping file", "path", path, "error", err)
		metrics.RecordFile(skipLabel(path), metrics.OutcomeSkipped, 0, 0)
		return nil, err
	}
	log := e.log.With("path", path, "format", t.Format)

	// On later runs the sidecar holds an older original, so a regression
	// rolls back to a snapshot of this run's input instead.
	var snap string
	if created, err := e.backups.Ensure(path); err != nil {
		log.Warn("backup failed", "error", err)
	} else if created {
		log.Debug("backup created", "backup", backup.Path(path))
	} else if e.backups.Enabled && e.backups.Exists(path) {
		if snap, err = backup.Snapshot(path); err != nil {
			log.Warn("snapshot failed", "error", err)
			snap = ""
		} else {
			defer os.Remove(snap)
		}
	}

	used, err := e.reencode(ctx, t)
	if err != nil {
		metrics.RecordFile(string(t.Format), metrics.OutcomeFailed, 0, time.Since(start).Seconds())
		log.Error("re-encode failed", "error", err)
		if e.wantsWebP(t.Format) {
			log.Warn("generating webp from a file that failed to re-encode")
			e.derive(ctx, log, path)
		}
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	res := &Result{
		Path:         path,
		Format:       t.Format,
		Backend:      used,
		OriginalSize: uint64(t.Size),
		NewSize:      uint64(info.Size()),
	}

	if res.NewSize >= res.OriginalSize {
		if restored, err := e.rollback(path, snap); err != nil {
			log.Warn("restore after regression failed", "error", err)
		} else {
			res.Restored = restored
		}
		log.Info("output not smaller, keeping original",
			"backend", used, "original", res.OriginalSize, "new", res.NewSize, "restored", res.Restored)
		res.NewSize = res.OriginalSize
	}
	res.SavedBytes = res.OriginalSize - res.NewSize
	res.SavedPercent = savedPercent(res.SavedBytes, res.OriginalSize)

	outcome := metrics.OutcomeUnchanged
	if res.SavedBytes > 0 {
		outcome = metrics.OutcomeSaved
		log.Info("optimized",
			"backend", used, "original", res.OriginalSize, "new", res.NewSize, "saved_percent", res.SavedPercent)
	}
	metrics.RecordFile(string(t.Format), outcome, res.SavedBytes, time.Since(start).Seconds())

	e.record(ctx, log, attachmentID, res)

	if e.wantsWebP(t.Format) {
		res.WebPPath = e.derive(ctx, log, path)
	}
	return res, nil
}

// OptimizeAttachment optimizes the primary file and every size of one
// attachment. Files that fail or do not apply are left out of the result.
func (e *Engine) OptimizeAttachment(ctx context.Context, id int64) ([]Result, error) {
	if e.source == nil {
		return nil, ErrNoSource
	}
	a, err := e.source.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup attachment %d: %w", id, err)
	}

	var out []Result
	for _, f := range a.Files() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r, err := e.OptimizeFile(ctx, f, id)
		if err != nil {
			if !errors.Is(err, format.ErrNotApplicable) {
				e.log.Warn("attachment file failed", "attachment", id, "path", f, "error", err)
			}
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// reencode walks the chain for t's format and returns the name of the
// backend that succeeded.
func (e *Engine) reencode(ctx context.Context, t format.Target) (string, error) {
	job := encoder.Job{Format: t.Format, Options: e.opts}
	var errs []error

	for _, b := range e.registry.Reencoders(t.Format) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !b.Available() {
			metrics.BackendAttempts.WithLabelValues(b.Name(), "unavailable").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), encoder.ErrUnavailable))
			continue
		}

		if err := safeReencode(ctx, b, t.Path, job); err != nil {
			result := "failed"
			if errors.Is(err, encoder.ErrUnavailable) {
				result = "unavailable"
			}
			metrics.BackendAttempts.WithLabelValues(b.Name(), result).Inc()
			e.log.Debug("backend failed", "backend", b.Name(), "path", t.Path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}

		metrics.BackendAttempts.WithLabelValues(b.Name(), "ok").Inc()
		return b.Name(), nil
	}

	if len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no backend handles %s", t.Format))
	}
	return "", fmt.Errorf("%w: %s: %w", ErrEncodeFailure, t.Path, errors.Join(errs...))
}

// rollback puts this run's input back. On a later run snap holds that
// input and the sidecar, which keeps the first original, is left alone;
// the sidecar is copied back only on the run that created it. It reports
// false when backups are off.
func (e *Engine) rollback(path, snap string) (bool, error) {
	switch {
	case !e.backups.Enabled:
		return false, nil
	case snap != "":
		return true, backup.RestoreFrom(snap, path)
	case e.backups.Exists(path):
		return true, e.backups.Restore(path)
	default:
		return false, nil
	}
}

// safeReencode turns a backend panic into an error.
func safeReencode(ctx context.Context, b encoder.Reencoder, path string, job encoder.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return b.Reencode(ctx, path, job)
}

// skipLabel is the format label for a file Resolve rejected.
func skipLabel(path string) string {
	if f, ok := format.FromExt(path); ok {
		return string(f)
	}
	return "unknown"
}

func (e *Engine) wantsWebP(f format.Format) bool {
	return e.convertWebP && f.CanDeriveWebP()
}

// derive writes the WebP sibling and returns its path, or "" on failure.
func (e *Engine) derive(ctx context.Context, log *slog.Logger, path string) string {
	dst, err := e.webp.Generate(ctx, path)
	if err != nil {
		log.Warn("webp derivative failed", "error", err)
		return ""
	}
	return dst
}

// record upserts the stats row. Failures are logged only.
func (e *Engine) record(ctx context.Context, log *slog.Logger, attachmentID int64, res *Result) {
	if e.stats == nil {
		return
	}
	err := e.stats.Record(ctx, stats.Record{
		AttachmentID:  attachmentID,
		FilePath:      res.Path,
		OriginalSize:  res.OriginalSize,
		OptimizedSize: res.NewSize,
		SavedBytes:    res.SavedBytes,
		OptimizedAt:   e.now().UTC(),
	})
	if err != nil {
		log.Warn("record stats failed", "error", err)
	}
}

// savedPercent rounds to one decimal place.
func savedPercent(saved, original uint64) float64 {
	if original == 0 {
		return 0
	}
	return math.Round(float64(saved)/float64(original)*1000) / 10
}

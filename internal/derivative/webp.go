// Package derivative produces sibling WebP files next to PNG and JPEG
// originals.
package derivative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/imgopt/internal/encoder"
	"github.com/AnyUserName/imgopt/internal/metrics"
)

// ErrNoWebPBackend is returned when every backend in the chain failed
// or produced an empty file.
var ErrNoWebPBackend = errors.New("no webp backend succeeded")

// errEmptyOutput marks a backend that reported success but wrote nothing.
var errEmptyOutput = errors.New("empty output")

// PathFor returns the derivative path for src: same directory and stem,
// ".webp" extension.
func PathFor(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".webp"
}

// Generator walks a WebP writer chain until one produces a non-empty file.
type Generator struct {
	writers []encoder.WebPWriter
	quality int
	log     *slog.Logger
}

// New returns a generator over writers in priority order.
func New(writers []encoder.WebPWriter, quality int, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{writers: writers, quality: quality, log: log}
}

// Generate writes PathFor(src) and returns its path. A backend's output
// only counts when the file exists afterwards with a nonzero size.
func (g *Generator) Generate(ctx context.Context, src string) (string, error) {
	dst := PathFor(src)
	prev, _ := os.Stat(dst)
	var errs []error

	for _, w := range g.writers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !w.Available() || !w.CanWriteWebP() {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), encoder.ErrUnavailable))
			continue
		}

		err := safeWrite(ctx, w, src, dst, g.quality)
		if err == nil {
			err = verifyWritten(dst, prev)
		}
		if err != nil {
			g.log.Debug("webp backend failed", "backend", w.Name(), "path", src, "error", err)
			metrics.WebPAttempts.WithLabelValues(w.Name(), "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}

		metrics.WebPAttempts.WithLabelValues(w.Name(), "ok").Inc()
		g.log.Debug("webp derivative written", "backend", w.Name(), "path", dst)
		return dst, nil
	}

	if len(errs) == 0 {
		return "", ErrNoWebPBackend
	}
	return "", fmt.Errorf("%w: %w", ErrNoWebPBackend, errors.Join(errs...))
}

// safeWrite turns a backend panic into an error.
func safeWrite(ctx context.Context, w encoder.WebPWriter, src, dst string, quality int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return w.WriteWebP(ctx, src, dst, quality)
}

// verifyWritten checks dst was (re)written and is non-empty. prev is the
// derivative left by an earlier run, if any; an untouched prev does not
// count as output. A zero-length dst is removed so the next backend
// starts clean.
func verifyWritten(dst string, prev os.FileInfo) error {
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(dst)
		return errEmptyOutput
	}
	if prev != nil && os.SameFile(prev, info) && prev.ModTime().Equal(info.ModTime()) {
		return errors.New("output not written")
	}
	return nil
}

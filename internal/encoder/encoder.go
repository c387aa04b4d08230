// Package encoder wraps the image libraries and tools that do the actual
// re-encoding. Each one is a Backend; the Registry hands them out in
// priority order and the engine walks that list until one succeeds.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnyUserName/imgopt/internal/format"
)

// ErrUnavailable means a backend cannot handle the request: the tool is
// not installed, the library was not compiled in, or the format or
// capability is missing. The engine falls through to the next backend.
var ErrUnavailable = errors.New("backend unavailable")

// Options carries the numeric settings a backend needs. Values are
// already clamped by the config layer.
type Options struct {
	CompressionLevel int // PNG, 0-9
	JPEGQuality      int // JPEG and JPEG-in-TIFF, 10-95
	WebPQuality      int // WebP, 1-100
	Progressive      bool
}

// Job describes one in-place re-encode.
type Job struct {
	Format  format.Format
	Options Options
}

// Backend is an image library or tool.
type Backend interface {
	// Name identifies the backend in logs and stats ("magick", "vips", ...).
	Name() string

	// Available returns true if the backend is ready to use.
	// External tools (magick, cwebp) may not be installed.
	Available() bool
}

// Reencoder rewrites an image file in place in its own format.
type Reencoder interface {
	Backend

	// Supports reports whether the backend has a strategy for f.
	Supports(f format.Format) bool

	// Reencode rewrites path. On error path is left untouched.
	Reencode(ctx context.Context, path string, job Job) error
}

// WebPWriter renders a source image as a WebP file.
type WebPWriter interface {
	Backend

	// CanWriteWebP reports whether this build or install can emit WebP.
	CanWriteWebP() bool

	// WriteWebP writes src as WebP to dst at the given quality.
	WriteWebP(ctx context.Context, src, dst string, quality int) error
}

// unavailable wraps ErrUnavailable with a reason.
func unavailable(backend, reason string) error {
	return fmt.Errorf("%s: %s: %w", backend, reason, ErrUnavailable)
}

// replaceFile runs write against a temp file next to dst and renames it
// over dst on success, so dst is either fully replaced or untouched.
// ext is kept on the temp name for tools that sniff the extension.
func replaceFile(dst, ext string, mode os.FileMode, write func(tmpPath string) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".imgopt-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := write(tmpPath); err != nil {
		return err
	}

	if mode == 0 {
		mode = 0o644
		if info, err := os.Stat(dst); err == nil {
			mode = info.Mode().Perm()
		}
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

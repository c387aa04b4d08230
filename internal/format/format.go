// Package format classifies files by extension into the image formats the
// engine knows how to re-encode.
package format

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotApplicable means the file is not something the engine works on:
// unsupported extension, missing or unreadable, a directory, or empty.
// Callers treat it as "left untouched", not as a failure.
var ErrNotApplicable = errors.New("not applicable")

// Format is a normalized image format name.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WebP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// extensions maps recognized lower-case extensions to their format.
var extensions = map[string]Format{
	".png":  PNG,
	".jpg":  JPEG,
	".jpeg": JPEG,
	".webp": WebP,
	".gif":  GIF,
	".bmp":  BMP,
	".tiff": TIFF,
	".tif":  TIFF,
}

// Target is a file that passed resolution.
type Target struct {
	Path   string
	Format Format
	Size   int64
	Mode   os.FileMode
}

// FromExt returns the format for a file name's extension.
func FromExt(name string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// Supported reports whether name has a recognized image extension.
func Supported(name string) bool {
	_, ok := FromExt(name)
	return ok
}

// CanDeriveWebP reports whether a WebP derivative is generated for f.
func (f Format) CanDeriveWebP() bool {
	return f == PNG || f == JPEG
}

// Resolve validates path and returns its target. It never writes.
func Resolve(path string) (Target, error) {
	f, ok := FromExt(path)
	if !ok {
		return Target{}, ErrNotApplicable
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return Target{}, ErrNotApplicable
	}

	// Opening is the only portable readability check.
	fh, err := os.Open(path)
	if err != nil {
		return Target{}, ErrNotApplicable
	}
	fh.Close()

	return Target{
		Path:   path,
		Format: f,
		Size:   info.Size(),
		Mode:   info.Mode().Perm(),
	}, nil
}

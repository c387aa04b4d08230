package encoder

import (
	"fmt"
	"strings"

	"github.com/AnyUserName/imgopt/internal/format"
)

// Tools overrides external binary locations.
type Tools struct {
	Magick string
	CWebP  string
}

// Registry holds backends in priority order.
type Registry struct {
	reencoders []Reencoder
	webp       []WebPWriter
}

// NewRegistry builds the default chains:
//
//	re-encode: magick → vips → raster
//	webp:      magick → vips → raster → cwebp
func NewRegistry(t Tools) *Registry {
	magick := &MagickBackend{Path: t.Magick}
	vips := &VipsBackend{}
	raster := &RasterBackend{}
	cwebp := &CWebPBackend{Path: t.CWebP}

	return &Registry{
		reencoders: []Reencoder{magick, vips, raster},
		webp:       []WebPWriter{magick, vips, raster, cwebp},
	}
}

// NewRegistryWith builds a registry from explicit chains.
func NewRegistryWith(reencoders []Reencoder, webp []WebPWriter) *Registry {
	return &Registry{reencoders: reencoders, webp: webp}
}

// Reencoders returns the backends that may handle f, in priority order.
// Availability is not filtered here so the engine can log why a
// preferred backend was skipped.
func (r *Registry) Reencoders(f format.Format) []Reencoder {
	var out []Reencoder
	for _, b := range r.reencoders {
		if b.Supports(f) {
			out = append(out, b)
		}
	}
	return out
}

// WebPWriters returns the WebP chain in priority order.
func (r *Registry) WebPWriters() []WebPWriter {
	return r.webp
}

// Status describes one backend for display.
type Status struct {
	Name      string
	Available bool
	Formats   []format.Format
	WebP      bool
}

var allFormats = []format.Format{
	format.PNG, format.JPEG, format.WebP, format.GIF, format.BMP, format.TIFF,
}

// Status reports every distinct backend's availability and capabilities.
func (r *Registry) Status() []Status {
	var out []Status
	index := map[string]int{}

	for _, b := range r.reencoders {
		s := Status{Name: b.Name(), Available: b.Available()}
		if s.Available {
			for _, f := range allFormats {
				if b.Supports(f) {
					s.Formats = append(s.Formats, f)
				}
			}
		}
		index[s.Name] = len(out)
		out = append(out, s)
	}
	for _, w := range r.webp {
		i, ok := index[w.Name()]
		if !ok {
			i = len(out)
			index[w.Name()] = i
			out = append(out, Status{Name: w.Name(), Available: w.Available()})
		}
		out[i].WebP = w.Available() && w.CanWriteWebP()
	}
	return out
}

// String returns a summary of available backends.
func (r *Registry) String() string {
	var avail []string
	for _, s := range r.Status() {
		if s.Available {
			avail = append(avail, s.Name)
		}
	}
	if len(avail) == 0 {
		return "no backends available"
	}
	return fmt.Sprintf("backends: %s", strings.Join(avail, ", "))
}

//go:build vips

package encoder

import (
	"context"
	"os"

	"github.com/h2non/bimg"

	"github.com/AnyUserName/imgopt/internal/format"
)

// vipsTypes maps formats to libvips save types. BMP is absent because
// libvips has no BMP saver; TIFF is absent because bimg cannot select
// JPEG compression inside TIFF.
var vipsTypes = map[format.Format]bimg.ImageType{
	format.PNG:  bimg.PNG,
	format.JPEG: bimg.JPEG,
	format.WebP: bimg.WEBP,
	format.GIF:  bimg.GIF,
}

// VipsBackend re-encodes through libvips via bimg. Built only with
// -tags vips since it needs libvips headers at compile time.
type VipsBackend struct{}

func (b *VipsBackend) Name() string { return "vips" }

func (b *VipsBackend) Available() bool { return bimg.VipsVersion != "" }

func (b *VipsBackend) Supports(f format.Format) bool {
	t, ok := vipsTypes[f]
	return ok && bimg.IsTypeSupportedSave(t)
}

func (b *VipsBackend) options(job Job) (bimg.Options, bool) {
	t, ok := vipsTypes[job.Format]
	if !ok {
		return bimg.Options{}, false
	}
	opt := bimg.Options{
		Type:          t,
		StripMetadata: true,
		NoAutoRotate:  true,
	}
	switch job.Format {
	case format.PNG:
		opt.Compression = job.Options.CompressionLevel
		opt.Quality = job.Options.CompressionLevel*10 + 5
	case format.JPEG:
		opt.Quality = job.Options.JPEGQuality
		opt.Interlace = job.Options.Progressive
		opt.Interpretation = bimg.InterpretationSRGB
	case format.WebP:
		opt.Quality = job.Options.WebPQuality
	}
	return opt, true
}

func (b *VipsBackend) Reencode(ctx context.Context, path string, job Job) error {
	opt, ok := b.options(job)
	if !ok || !b.Supports(job.Format) {
		return unavailable(b.Name(), "unsupported format "+string(job.Format))
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := bimg.NewImage(buf).Process(opt)
	if err != nil {
		return err
	}
	return replaceFile(path, "", 0, func(tmp string) error {
		return os.WriteFile(tmp, out, 0o644)
	})
}

func (b *VipsBackend) CanWriteWebP() bool { return bimg.IsTypeSupportedSave(bimg.WEBP) }

func (b *VipsBackend) WriteWebP(ctx context.Context, src, dst string, quality int) error {
	if !b.CanWriteWebP() {
		return unavailable(b.Name(), "libvips built without webp")
	}
	buf, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	out, err := bimg.NewImage(buf).Process(bimg.Options{
		Type:          bimg.WEBP,
		Quality:       quality,
		StripMetadata: true,
	})
	if err != nil {
		return err
	}
	return replaceFile(dst, ".webp", 0, func(tmp string) error {
		return os.WriteFile(tmp, out, 0o644)
	})
}

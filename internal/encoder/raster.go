package encoder

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/AnyUserName/imgopt/internal/format"
)

// RasterBackend decodes into memory and re-encodes with Go image codecs.
// It is the fallback for PNG, JPEG, WebP and single-frame GIF and
// needs nothing installed. Decoding drops all metadata. WebP output
// needs libwebp through cgo; without cgo WebP is reported unavailable.
type RasterBackend struct{}

func (b *RasterBackend) Name() string    { return "raster" }
func (b *RasterBackend) Available() bool { return true }

func (b *RasterBackend) Supports(f format.Format) bool {
	switch f {
	case format.PNG, format.JPEG, format.GIF:
		return true
	case format.WebP:
		return webpEncoderBuilt
	}
	return false
}

func (b *RasterBackend) Reencode(ctx context.Context, path string, job Job) error {
	if !b.Supports(job.Format) {
		return unavailable(b.Name(), "unsupported format "+string(job.Format))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if job.Format == format.GIF {
		frames, err := gifFrameCount(path)
		if err != nil {
			return fmt.Errorf("decode %s: %w", job.Format, err)
		}
		if frames > 1 {
			return unavailable(b.Name(), fmt.Sprintf("animated gif (%d frames)", frames))
		}
	}

	img, err := decodeFile(path)
	if err != nil {
		return fmt.Errorf("decode %s: %w", job.Format, err)
	}

	return replaceFile(path, "", 0, func(tmp string) error {
		return writeImage(tmp, func(w io.Writer) error {
			return encodeRaster(w, img, job)
		})
	})
}

func (b *RasterBackend) CanWriteWebP() bool { return webpEncoderBuilt }

func (b *RasterBackend) WriteWebP(ctx context.Context, src, dst string, quality int) error {
	if !webpEncoderBuilt {
		return unavailable(b.Name(), "built without cgo")
	}
	img, err := decodeFile(src)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return replaceFile(dst, ".webp", 0, func(tmp string) error {
		return writeImage(tmp, func(w io.Writer) error {
			return encodeWebP(w, img, quality)
		})
	})
}

func encodeRaster(w io.Writer, img image.Image, job Job) error {
	switch job.Format {
	case format.PNG:
		// png.Encoder keeps the alpha channel of NRGBA/RGBA sources as-is.
		return imaging.Encode(w, img, imaging.PNG,
			imaging.PNGCompressionLevel(PNGLevel(job.Options.CompressionLevel)))
	case format.JPEG:
		return imaging.Encode(w, img, imaging.JPEG,
			imaging.JPEGQuality(job.Options.JPEGQuality))
	case format.WebP:
		return encodeWebP(w, img, job.Options.WebPQuality)
	case format.GIF:
		return imaging.Encode(w, img, imaging.GIF)
	}
	return unavailable("raster", "unsupported format "+string(job.Format))
}

// PNGLevel maps a 0-9 zlib-style level onto Go's four PNG levels.
func PNGLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	return img, err
}

func gifFrameCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	g, err := gif.DecodeAll(bufio.NewReader(f))
	if err != nil {
		return 0, err
	}
	return len(g.Image), nil
}

func writeImage(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 256*1024)
	if err := encode(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

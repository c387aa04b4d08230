package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/AnyUserName/imgopt/internal/format"
)

// coderNames maps formats to ImageMagick coder prefixes. Prefixing the
// output path ("PNG:/tmp/x") pins the format regardless of extension.
var coderNames = map[format.Format]string{
	format.PNG:  "PNG",
	format.JPEG: "JPEG",
	format.WebP: "WEBP",
	format.GIF:  "GIF",
	format.BMP:  "BMP",
	format.TIFF: "TIFF",
}

// MagickBackend re-encodes through the ImageMagick command line tool.
// It is the preferred backend: it handles every supported format and
// exposes the fine-grained PNG and JPEG controls.
// Install: brew install imagemagick / apt install imagemagick
type MagickBackend struct {
	// Path overrides the binary location. Empty means PATH lookup of
	// "magick" (ImageMagick 7) then "convert" (ImageMagick 6).
	Path string

	once      sync.Once
	available bool
	bin       string

	webpOnce sync.Once
	webp     bool
}

func (b *MagickBackend) Name() string { return "magick" }

func (b *MagickBackend) Available() bool {
	b.once.Do(func() {
		candidates := []string{"magick", "convert"}
		if b.Path != "" {
			candidates = []string{b.Path}
		}
		for _, c := range candidates {
			if path, err := exec.LookPath(c); err == nil {
				b.available = true
				b.bin = path
				return
			}
		}
	})
	return b.available
}

func (b *MagickBackend) Supports(f format.Format) bool {
	_, ok := coderNames[f]
	return ok
}

// Args returns the processing arguments placed between input and output
// for a job. Exposed for the backends command and tests.
func (b *MagickBackend) Args(job Job) []string {
	opt := job.Options
	args := []string{"-strip"}

	switch job.Format {
	case format.PNG:
		lvl := opt.CompressionLevel
		args = append(args,
			"-quality", strconv.Itoa(lvl*10+5),
			"-define", "png:compression-level="+strconv.Itoa(lvl),
			"-define", "png:compression-filter=5",
			"-define", "png:compression-strategy=0",
			"-define", "png:exclude-chunk=all",
			"-define", "png:include-chunk=none,trns,gama",
		)
	case format.JPEG:
		interlace := "None"
		if opt.Progressive {
			interlace = "Plane"
		}
		args = append(args,
			"-quality", strconv.Itoa(opt.JPEGQuality),
			"-sampling-factor", "4:2:0",
			"-interlace", interlace,
			"-colorspace", "sRGB",
		)
	case format.WebP:
		args = append(args, "-quality", strconv.Itoa(opt.WebPQuality))
	case format.GIF:
		args = append(args, "-layers", "Optimize")
	case format.BMP:
		// strip only
	case format.TIFF:
		args = append(args,
			"-compress", "JPEG",
			"-quality", strconv.Itoa(opt.JPEGQuality),
		)
	}
	return args
}

func (b *MagickBackend) Reencode(ctx context.Context, path string, job Job) error {
	if !b.Available() {
		return unavailable(b.Name(), "magick/convert not found in PATH")
	}
	coder, ok := coderNames[job.Format]
	if !ok {
		return unavailable(b.Name(), "unsupported format "+string(job.Format))
	}

	return replaceFile(path, "", 0, func(tmp string) error {
		args := append([]string{path}, b.Args(job)...)
		args = append(args, coder+":"+tmp)
		return b.run(ctx, args)
	})
}

func (b *MagickBackend) CanWriteWebP() bool {
	if !b.Available() {
		return false
	}
	b.webpOnce.Do(func() {
		out, err := exec.Command(b.bin, "-list", "format").Output()
		if err == nil {
			b.webp = listsWritableWebP(out)
		}
	})
	return b.webp
}

func (b *MagickBackend) WriteWebP(ctx context.Context, src, dst string, quality int) error {
	if !b.CanWriteWebP() {
		return unavailable(b.Name(), "no WEBP write support")
	}
	return replaceFile(dst, ".webp", 0, func(tmp string) error {
		return b.run(ctx, []string{src, "-quality", strconv.Itoa(quality), "WEBP:" + tmp})
	})
}

func (b *MagickBackend) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, b.bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("magick: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// listsWritableWebP scans `magick -list format` output for a WEBP row
// whose mode column includes "w". Rows look like:
//
//	WEBP* WEBP      rw+   WebP Image Format (libwebp 1.3.2 [020F])
func listsWritableWebP(out []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		name := strings.TrimRight(fields[0], "*")
		if !strings.EqualFold(name, "WEBP") {
			continue
		}
		// IM7 has a module column, IM6 does not.
		for _, f := range fields[1:3] {
			if strings.HasPrefix(f, "r") || strings.HasPrefix(f, "-") {
				return strings.Contains(f, "w")
			}
		}
	}
	return false
}

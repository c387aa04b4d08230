//go:build ignore

// gen_fixtures creates a small media library for smoke-testing imgopt.
// Usage: go run gen_fixtures.go <media_root>
//
// Images are written with weak compression so every format has room to
// shrink. Thumbnail sizes follow the <name>-<w>x<h>.<ext> convention.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <media_root>")
		os.Exit(1)
	}
	root := os.Args[1]
	month := filepath.Join(root, "2025", "06")
	os.MkdirAll(month, 0o755)

	n := 0
	write := func(name string, enc func(io.Writer) error) {
		f, err := os.Create(filepath.Join(month, name))
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := enc(f); err != nil {
			panic(err)
		}
		n++
	}

	// Banner (JPEG, 400x225) plus two thumbnail sizes.
	banner := gradient(400, 225)
	write("banner.jpg", jpegAt(banner, 95))
	for _, s := range [][2]int{{150, 150}, {300, 169}} {
		thumb := imaging.Fill(banner, s[0], s[1], imaging.Center, imaging.Lanczos)
		write(fmt.Sprintf("banner-%dx%d.jpg", s[0], s[1]), jpegAt(thumb, 95))
	}

	// Cards (PNG, 200x150, stored uncompressed).
	for i := 1; i <= 3; i++ {
		write(fmt.Sprintf("card-%d.png", i), rawPNG(solidWithBorder(200, 150, uint8(i*60))))
	}

	// Alpha PNG.
	write("logo.png", rawPNG(alphaGradient(100, 100)))

	// Single-frame GIF, BMP and TIFF.
	write("icon.gif", func(w io.Writer) error { return gif.Encode(w, gradient(64, 64), nil) })
	write("scan.bmp", func(w io.Writer) error { return bmp.Encode(w, gradient(120, 80)) })
	write("scan.tiff", func(w io.Writer) error {
		return tiff.Encode(w, gradient(120, 80), &tiff.Options{Compression: tiff.Uncompressed})
	})

	// Not an image; should be ignored.
	os.WriteFile(filepath.Join(month, "readme.txt"), []byte("fixtures\n"), 0o644)

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created %d images in %s\n", n, root)
}

func jpegAt(img image.Image, q int) func(io.Writer) error {
	return func(w io.Writer) error { return jpeg.Encode(w, img, &jpeg.Options{Quality: q}) }
}

func rawPNG(img image.Image) func(io.Writer) error {
	return func(w io.Writer) error {
		return (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(w, img)
	}
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

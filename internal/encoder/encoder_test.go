package encoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/AnyUserName/imgopt/internal/format"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255,
			})
		}
	}
	return img
}

func writeUncompressedPNG(t *testing.T, path string, img image.Image) int64 {
	t.Helper()
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return int64(buf.Len())
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}

func TestRaster_PNGShrinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	before := writeUncompressedPNG(t, path, gradient(200, 150))

	b := &RasterBackend{}
	job := Job{Format: format.PNG, Options: Options{CompressionLevel: 9}}
	if err := b.Reencode(context.Background(), path, job); err != nil {
		t.Fatalf("reencode: %v", err)
	}

	after := fileSize(t, path)
	if after >= before {
		t.Errorf("png did not shrink: %d -> %d", before, after)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Errorf("dimensions changed: %v", img.Bounds())
	}
}

func TestRaster_PNGKeepsAlpha(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpha.png")
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 60, B: 30, A: uint8(x * 16)})
		}
	}
	writeUncompressedPNG(t, path, img)

	b := &RasterBackend{}
	if err := b.Reencode(context.Background(), path, Job{Format: format.PNG, Options: Options{CompressionLevel: 6}}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	_, _, _, a := out.At(0, 0).RGBA()
	if a != 0 {
		t.Errorf("alpha at (0,0): got %d, want 0", a)
	}
}

func TestRaster_JPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(120, 80), &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	b := &RasterBackend{}
	if err := b.Reencode(context.Background(), path, Job{Format: format.JPEG, Options: Options{JPEGQuality: 40}}); err != nil {
		t.Fatal(err)
	}
	if after := fileSize(t, path); after >= int64(buf.Len()) {
		t.Errorf("jpeg did not shrink: %d -> %d", buf.Len(), after)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode not preserved: %o", info.Mode().Perm())
	}
}

func TestRaster_DeclinesAnimatedGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")
	pal := color.Palette{color.Black, color.White}
	anim := &gif.GIF{}
	for i := 0; i < 3; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
		frame.SetColorIndex(i, i, 1)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	err := (&RasterBackend{}).Reencode(context.Background(), path, Job{Format: format.GIF})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if got, _ := os.ReadFile(path); !bytes.Equal(got, buf.Bytes()) {
		t.Error("declined gif was modified")
	}
}

func TestRaster_UnsupportedFormats(t *testing.T) {
	b := &RasterBackend{}
	for _, f := range []format.Format{format.BMP, format.TIFF} {
		if b.Supports(f) {
			t.Errorf("raster should not support %s", f)
		}
		err := b.Reencode(context.Background(), "x."+string(f), Job{Format: f})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("%s: got %v, want ErrUnavailable", f, err)
		}
	}
}

func TestRaster_CorruptInputLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := (&RasterBackend{}).Reencode(context.Background(), path, Job{Format: format.PNG})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if got, _ := os.ReadFile(path); string(got) != "garbage" {
		t.Errorf("file changed: %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestPNGLevel(t *testing.T) {
	cases := map[int]png.CompressionLevel{
		0: png.NoCompression,
		1: png.BestSpeed,
		3: png.BestSpeed,
		4: png.DefaultCompression,
		6: png.DefaultCompression,
		7: png.BestCompression,
		9: png.BestCompression,
	}
	for lvl, want := range cases {
		if got := PNGLevel(lvl); got != want {
			t.Errorf("PNGLevel(%d) = %v, want %v", lvl, got, want)
		}
	}
}

func TestMagickArgs(t *testing.T) {
	b := &MagickBackend{}
	opts := Options{CompressionLevel: 9, JPEGQuality: 72, WebPQuality: 60, Progressive: true}

	pngArgs := strings.Join(b.Args(Job{Format: format.PNG, Options: opts}), " ")
	for _, want := range []string{
		"-strip",
		"-quality 95",
		"png:compression-level=9",
		"png:compression-filter=5",
		"png:include-chunk=none,trns,gama",
	} {
		if !strings.Contains(pngArgs, want) {
			t.Errorf("png args missing %q: %s", want, pngArgs)
		}
	}

	jpegArgs := b.Args(Job{Format: format.JPEG, Options: opts})
	for _, want := range []string{"4:2:0", "Plane", "sRGB", "72"} {
		if !slices.Contains(jpegArgs, want) {
			t.Errorf("jpeg args missing %q: %v", want, jpegArgs)
		}
	}

	opts.Progressive = false
	if !slices.Contains(b.Args(Job{Format: format.JPEG, Options: opts}), "None") {
		t.Error("baseline jpeg should use -interlace None")
	}

	tiffArgs := b.Args(Job{Format: format.TIFF, Options: opts})
	if !slices.Contains(tiffArgs, "JPEG") || !slices.Contains(tiffArgs, "72") {
		t.Errorf("tiff args: %v", tiffArgs)
	}

	gifArgs := b.Args(Job{Format: format.GIF, Options: opts})
	if !slices.Contains(gifArgs, "Optimize") {
		t.Errorf("gif args: %v", gifArgs)
	}
}

func TestListsWritableWebP(t *testing.T) {
	im7 := []byte(`   Format  Module    Mode  Description
-------------------------------------------------------------------------------
     WBMP* WBMP      rw-   Wireless Bitmap (level 0) image
     WEBP* WEBP      rw+   WebP Image Format (libwebp 1.3.2 [020F])
`)
	if !listsWritableWebP(im7) {
		t.Error("im7 listing: webp not detected")
	}

	im6ReadOnly := []byte(`     WEBP* r--   WebP Image Format (libwebp 0.6.1)
`)
	if listsWritableWebP(im6ReadOnly) {
		t.Error("read-only webp reported writable")
	}

	if listsWritableWebP([]byte("PNG* PNG rw- Portable Network Graphics\n")) {
		t.Error("missing webp reported writable")
	}
}

func TestMagickUnavailable(t *testing.T) {
	b := &MagickBackend{Path: "definitely-not-a-real-binary-imgopt"}
	if b.Available() {
		t.Skip("binary unexpectedly present")
	}
	err := b.Reencode(context.Background(), "x.png", Job{Format: format.PNG})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if b.CanWriteWebP() {
		t.Error("unavailable magick claims webp support")
	}
}

func TestCWebPUnavailable(t *testing.T) {
	b := &CWebPBackend{Path: "definitely-not-cwebp-imgopt"}
	err := b.WriteWebP(context.Background(), "a.png", "a.webp", 80)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestRegistry_Order(t *testing.T) {
	r := NewRegistry(Tools{})

	var names []string
	for _, b := range r.Reencoders(format.PNG) {
		names = append(names, b.Name())
	}
	if strings.Join(names, ",") != "magick,vips,raster" && strings.Join(names, ",") != "magick,raster" {
		t.Errorf("png chain: %v", names)
	}

	for _, b := range r.Reencoders(format.BMP) {
		if b.Name() == "raster" {
			t.Error("raster listed for bmp")
		}
	}

	var webp []string
	for _, w := range r.WebPWriters() {
		webp = append(webp, w.Name())
	}
	if webp[len(webp)-1] != "cwebp" {
		t.Errorf("cwebp must be last resort: %v", webp)
	}

	status := r.Status()
	var raster *Status
	for i := range status {
		if status[i].Name == "raster" {
			raster = &status[i]
		}
	}
	if raster == nil || !raster.Available || raster.WebP != webpEncoderBuilt {
		t.Errorf("raster status: %+v", raster)
	}
}

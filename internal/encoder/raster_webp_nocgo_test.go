//go:build !cgo

package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/imgopt/internal/format"
)

func TestRaster_WebPUnavailableWithoutCgo(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writeUncompressedPNG(t, src, gradient(8, 8))

	b := &RasterBackend{}
	if b.CanWriteWebP() {
		t.Error("CanWriteWebP without cgo")
	}
	if b.Supports(format.WebP) {
		t.Error("Supports(webp) without cgo")
	}

	dst := filepath.Join(dir, "a.webp")
	if err := b.WriteWebP(context.Background(), src, dst, 80); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("derivative written without an encoder")
	}
}

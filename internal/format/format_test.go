package format

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFromExt(t *testing.T) {
	cases := map[string]Format{
		"a.png":      PNG,
		"a.PNG":      PNG,
		"b.jpg":      JPEG,
		"b.JPEG":     JPEG,
		"c.webp":     WebP,
		"d.gif":      GIF,
		"e.bmp":      BMP,
		"f.tif":      TIFF,
		"f.tiff":     TIFF,
		"dir/x.y.Tif": TIFF,
	}
	for name, want := range cases {
		got, ok := FromExt(name)
		if !ok || got != want {
			t.Errorf("FromExt(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}

	for _, name := range []string{"a.svg", "a", "a.png.optimizer-backup", "a.heic"} {
		if Supported(name) {
			t.Errorf("Supported(%q) = true", name)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	if err := os.WriteFile(path, []byte("not really a png"), 0o640); err != nil {
		t.Fatal(err)
	}

	tgt, err := Resolve(path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tgt.Format != PNG {
		t.Errorf("format: got %q", tgt.Format)
	}
	if tgt.Size != 16 {
		t.Errorf("size: got %d", tgt.Size)
	}
	if tgt.Mode != 0o640 {
		t.Errorf("mode: got %o", tgt.Mode)
	}
}

func TestResolve_NotApplicable(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	subdir := filepath.Join(dir, "folder.png")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{
		empty,
		text,
		subdir,
		filepath.Join(dir, "missing.png"),
	} {
		if _, err := Resolve(p); !errors.Is(err, ErrNotApplicable) {
			t.Errorf("Resolve(%s): got %v, want ErrNotApplicable", filepath.Base(p), err)
		}
	}
}

func TestCanDeriveWebP(t *testing.T) {
	for _, f := range []Format{PNG, JPEG} {
		if !f.CanDeriveWebP() {
			t.Errorf("%s should derive webp", f)
		}
	}
	for _, f := range []Format{WebP, GIF, BMP, TIFF} {
		if f.CanDeriveWebP() {
			t.Errorf("%s should not derive webp", f)
		}
	}
}

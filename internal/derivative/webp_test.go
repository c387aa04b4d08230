package derivative

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/imgopt/internal/encoder"
)

// fakeWriter writes data to dst, or fails with err, or panics.
type fakeWriter struct {
	name      string
	available bool
	data      []byte
	err       error
	panics    bool
	calls     int
}

func (f *fakeWriter) Name() string       { return f.name }
func (f *fakeWriter) Available() bool    { return f.available }
func (f *fakeWriter) CanWriteWebP() bool { return true }

func (f *fakeWriter) WriteWebP(_ context.Context, _, dst string, _ int) error {
	f.calls++
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return f.err
	}
	if f.data == nil {
		return nil // claims success, writes nothing
	}
	return os.WriteFile(dst, f.data, 0o644)
}

func source(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(src, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestPathFor(t *testing.T) {
	cases := map[string]string{
		"/a/b/photo.png":  "/a/b/photo.webp",
		"/a/b/photo.JPEG": "/a/b/photo.webp",
		"x.y.jpg":         "x.y.webp",
	}
	for in, want := range cases {
		if got := PathFor(in); got != want {
			t.Errorf("PathFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerate_ZeroByteFallsThrough(t *testing.T) {
	src := source(t)
	empty := &fakeWriter{name: "empty", available: true, data: []byte{}}
	good := &fakeWriter{name: "good", available: true, data: []byte("RIFFwebp")}

	g := New([]encoder.WebPWriter{empty, good}, 80, nil)
	dst, err := g.Generate(context.Background(), src)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if empty.calls != 1 || good.calls != 1 {
		t.Errorf("calls: empty=%d good=%d", empty.calls, good.calls)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("derivative is empty")
	}
}

func TestGenerate_SkipsUnavailableAndPanics(t *testing.T) {
	src := source(t)
	missing := &fakeWriter{name: "missing", available: false}
	panicky := &fakeWriter{name: "panicky", available: true, panics: true}
	good := &fakeWriter{name: "good", available: true, data: []byte("RIFF")}

	g := New([]encoder.WebPWriter{missing, panicky, good}, 80, nil)
	if _, err := g.Generate(context.Background(), src); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if missing.calls != 0 {
		t.Error("unavailable writer was called")
	}
	if panicky.calls != 1 {
		t.Error("panicking writer not attempted")
	}
}

func TestGenerate_AllFail(t *testing.T) {
	src := source(t)
	g := New([]encoder.WebPWriter{
		&fakeWriter{name: "a", available: true, err: errors.New("nope")},
		&fakeWriter{name: "b", available: true}, // success without output
		&fakeWriter{name: "c", available: true, data: []byte{}},
	}, 80, nil)

	_, err := g.Generate(context.Background(), src)
	if !errors.Is(err, ErrNoWebPBackend) {
		t.Fatalf("got %v, want ErrNoWebPBackend", err)
	}
	if _, statErr := os.Stat(PathFor(src)); !os.IsNotExist(statErr) {
		t.Error("failed chain left a derivative behind")
	}
}

func TestGenerate_StaleDerivativeDoesNotCount(t *testing.T) {
	src := source(t)
	if err := os.WriteFile(PathFor(src), []byte("old webp"), 0o644); err != nil {
		t.Fatal(err)
	}

	lazy := &fakeWriter{name: "lazy", available: true} // success, writes nothing
	g := New([]encoder.WebPWriter{lazy}, 80, nil)
	if _, err := g.Generate(context.Background(), src); !errors.Is(err, ErrNoWebPBackend) {
		t.Fatalf("got %v, want ErrNoWebPBackend", err)
	}
}

//go:build !vips

package encoder

import (
	"context"

	"github.com/AnyUserName/imgopt/internal/format"
)

// VipsBackend is a placeholder when built without -tags vips.
type VipsBackend struct{}

func (b *VipsBackend) Name() string                  { return "vips" }
func (b *VipsBackend) Available() bool               { return false }
func (b *VipsBackend) Supports(f format.Format) bool { return false }
func (b *VipsBackend) CanWriteWebP() bool            { return false }

func (b *VipsBackend) Reencode(ctx context.Context, path string, job Job) error {
	return unavailable(b.Name(), "built without -tags vips")
}

func (b *VipsBackend) WriteWebP(ctx context.Context, src, dst string, quality int) error {
	return unavailable(b.Name(), "built without -tags vips")
}

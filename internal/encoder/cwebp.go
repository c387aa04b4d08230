package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// CWebPBackend writes WebP files by shelling out to cwebp, which reads
// PNG and JPEG directly. Last resort in the WebP chain.
// Install: brew install webp / apt install webp
type CWebPBackend struct {
	// Path overrides the binary location. Empty means PATH lookup.
	Path string

	once      sync.Once
	available bool
	cwebpPath string
}

func (b *CWebPBackend) Name() string { return "cwebp" }

func (b *CWebPBackend) Available() bool {
	b.once.Do(func() {
		name := "cwebp"
		if b.Path != "" {
			name = b.Path
		}
		path, err := exec.LookPath(name)
		if err == nil {
			b.available = true
			b.cwebpPath = path
		}
	})
	return b.available
}

func (b *CWebPBackend) CanWriteWebP() bool { return b.Available() }

func (b *CWebPBackend) WriteWebP(ctx context.Context, src, dst string, quality int) error {
	if !b.Available() {
		return unavailable(b.Name(), "cwebp not found in PATH; install with: brew install webp")
	}

	return replaceFile(dst, ".webp", 0, func(tmp string) error {
		cmd := exec.CommandContext(ctx, b.cwebpPath,
			"-q", strconv.Itoa(quality),
			"-m", "6", // compression method (0=fast, 6=best)
			"-mt",     // multi-threaded
			"-quiet",
			"-metadata", "none",
			src,
			"-o", tmp,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("cwebp: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	})
}

// Package backup keeps a sidecar copy of each image's first-ever original.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Suffix is appended to the original path to form the sidecar path.
const Suffix = ".optimizer-backup"

// ErrNoBackup is returned by Restore when no sidecar exists.
var ErrNoBackup = errors.New("no backup")

// Manager creates and restores sidecar backups. The zero value is a
// disabled manager.
type Manager struct {
	Enabled bool
}

// New returns a manager.
func New(enabled bool) *Manager {
	return &Manager{Enabled: enabled}
}

// Path returns the sidecar path for an original.
func Path(original string) string {
	return original + Suffix
}

// IsBackup reports whether name is a sidecar file.
func IsBackup(name string) bool {
	return filepath.Ext(name) == Suffix
}

// Exists reports whether a sidecar exists for original.
func (m *Manager) Exists(original string) bool {
	info, err := os.Stat(Path(original))
	return err == nil && info.Mode().IsRegular()
}

// Ensure copies original to its sidecar when backups are enabled and no
// sidecar exists yet. It reports whether a new backup was written. An
// existing sidecar is never overwritten, so the first original survives
// any number of re-optimizations.
func (m *Manager) Ensure(original string) (bool, error) {
	if !m.Enabled || m.Exists(original) {
		return false, nil
	}
	if err := copyFile(original, Path(original)); err != nil {
		return false, fmt.Errorf("backup %s: %w", filepath.Base(original), err)
	}
	return true, nil
}

// Restore copies the sidecar back over original. The sidecar is kept.
func (m *Manager) Restore(original string) error {
	if !m.Exists(original) {
		return ErrNoBackup
	}
	if err := copyFile(Path(original), original); err != nil {
		return fmt.Errorf("restore %s: %w", filepath.Base(original), err)
	}
	return nil
}

// Snapshot copies original to a hidden temp file next to it and returns
// the copy's path. The caller removes it.
func Snapshot(original string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(original), ".imgopt-snap-*")
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", filepath.Base(original), err)
	}
	snap := f.Name()
	f.Close()

	if err := copyFile(original, snap); err != nil {
		os.Remove(snap)
		return "", fmt.Errorf("snapshot %s: %w", filepath.Base(original), err)
	}
	return snap, nil
}

// RestoreFrom copies a snapshot back over original.
func RestoreFrom(snapshot, original string) error {
	if err := copyFile(snapshot, original); err != nil {
		return fmt.Errorf("restore %s: %w", filepath.Base(original), err)
	}
	return nil
}

// copyFile writes src to dst through a temp file in dst's directory so a
// crash never leaves a truncated dst. The source's permissions are kept.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".imgopt-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}

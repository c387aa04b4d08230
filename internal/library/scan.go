// Package library indexes a media directory into attachments: a primary
// image plus the thumbnail sizes generated from it.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/AnyUserName/imgopt/internal/backup"
	"github.com/AnyUserName/imgopt/internal/format"
	"github.com/AnyUserName/imgopt/internal/hasher"
)

// ErrUnknownAttachment is returned by Lookup for an ID not in the index.
var ErrUnknownAttachment = errors.New("unknown attachment")

// Attachment is a logical image: the primary file and its sizes.
type Attachment struct {
	// ID is stable across scans (see hasher.PathID).
	ID int64
	// Path is the absolute path of the primary file.
	Path string
	// RelPath is Path relative to the library root, slash-separated.
	RelPath string
	// Format is the primary file's format.
	Format format.Format
	// Sizes are absolute paths of thumbnail files derived from Path.
	Sizes []string
}

// Files returns the primary followed by every size.
func (a Attachment) Files() []string {
	return append([]string{a.Path}, a.Sizes...)
}

// Library is an immutable snapshot of a scanned media root.
type Library struct {
	Root        string
	attachments []Attachment
	byID        map[int64]int
}

// sizeSuffix matches thumbnail stems such as "banner-300x200".
var sizeSuffix = regexp.MustCompile(`^(.+)-(\d+)x(\d+)$`)

// Scan walks root and groups supported images into attachments. Hidden
// directories, sidecar backups and WebP derivatives of PNG/JPEG siblings
// are ignored.
func Scan(root string) (*Library, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	// dir → file names, so grouping can look at siblings.
	dirs := map[string][]string{}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories.
			if strings.HasPrefix(d.Name(), ".") && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || backup.IsBackup(d.Name()) || !format.Supported(d.Name()) {
			return nil
		}
		dir := filepath.Dir(path)
		dirs[dir] = append(dirs[dir], d.Name())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", absRoot, err)
	}

	lib := &Library{Root: absRoot, byID: map[int64]int{}}
	for dir, names := range dirs {
		for _, a := range group(dir, names) {
			rel, err := filepath.Rel(absRoot, a.Path)
			if err != nil {
				return nil, err
			}
			a.RelPath = filepath.ToSlash(rel)
			a.ID = hasher.PathID(a.RelPath)
			lib.attachments = append(lib.attachments, a)
		}
	}

	sort.Slice(lib.attachments, func(i, j int) bool {
		return lib.attachments[i].RelPath < lib.attachments[j].RelPath
	})
	for i, a := range lib.attachments {
		lib.byID[a.ID] = i
	}
	return lib, nil
}

// group splits one directory's files into attachments.
func group(dir string, names []string) []Attachment {
	present := make(map[string]bool, len(names))
	stems := map[string]bool{}
	for _, n := range names {
		present[n] = true
		if f, _ := format.FromExt(n); f.CanDeriveWebP() {
			stems[stemOf(n)] = true
		}
	}

	primaries := map[string]*Attachment{}
	var sizes [][2]string // {primary name, size name}

	for _, n := range names {
		f, _ := format.FromExt(n)
		stem, ext := stemOf(n), filepath.Ext(n)

		if f == format.WebP && stems[stem] {
			continue // derivative of a PNG/JPEG sibling
		}
		if m := sizeSuffix.FindStringSubmatch(stem); m != nil && present[m[1]+ext] {
			sizes = append(sizes, [2]string{m[1] + ext, n})
			continue
		}
		primaries[n] = &Attachment{Path: filepath.Join(dir, n), Format: f}
	}

	for _, s := range sizes {
		if p, ok := primaries[s[0]]; ok {
			p.Sizes = append(p.Sizes, filepath.Join(dir, s[1]))
		}
	}

	out := make([]Attachment, 0, len(primaries))
	for _, p := range primaries {
		sort.Strings(p.Sizes)
		out = append(out, *p)
	}
	return out
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IDs returns every attachment ID in relative-path order.
func (l *Library) IDs() []int64 {
	ids := make([]int64, len(l.attachments))
	for i, a := range l.attachments {
		ids[i] = a.ID
	}
	return ids
}

// Attachments returns all attachments in relative-path order.
func (l *Library) Attachments() []Attachment {
	return append([]Attachment(nil), l.attachments...)
}

// Len returns the number of attachments.
func (l *Library) Len() int { return len(l.attachments) }

// Lookup returns the attachment with the given ID.
func (l *Library) Lookup(_ context.Context, id int64) (Attachment, error) {
	i, ok := l.byID[id]
	if !ok {
		return Attachment{}, fmt.Errorf("%w: %d", ErrUnknownAttachment, id)
	}
	return l.attachments[i], nil
}

// Package hasher provides xxHash64-based identifiers and checksums.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// PathID derives a stable positive int64 identifier from a
// slash-separated relative path. It is the attachment ID scheme: the same
// media tree yields the same IDs on every scan, on every machine.
func PathID(relPath string) int64 {
	return int64(xxhash.Sum64String(relPath) >> 1)
}

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to hexLen (0 = full 16 chars).
func ContentHash(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncate(h.Sum64(), hexLen), nil
}

// FileHash is ContentHashReader over a file.
func FileHash(path string, hexLen int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ContentHashReader(f, hexLen)
}

func truncate(sum uint64, hexLen int) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	full := hex.EncodeToString(b[:])
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}

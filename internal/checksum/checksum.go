// Package checksum provides the two integrity primitives the transfer
// core relies on: CRC-32 (IEEE) over chunk payloads and SHA-256 over
// whole files. Both are pure functions over bytes or streamed readers.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"hash/crc32"
	"io"
	"os"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// readBufSize matches the streaming-read pattern used elsewhere in this
// codebase for large-file hashing (one buffer, no full-file load).
const readBufSize = 1 << 20 // 1 MiB

// CRC32 computes the IEEE CRC-32 of b. The empty slice hashes to zero.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// VerifyCRC32 reports whether b's CRC-32 equals want, in constant time.
func VerifyCRC32(b []byte, want uint32) bool {
	got := CRC32(b)
	return subtle.ConstantTimeCompare(u32bytes(got), u32bytes(want)) == 1
}

func u32bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// SHA256 computes the SHA-256 digest of b.
func SHA256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// SHA256File streams path in fixed-size reads and returns its SHA-256
// digest without loading the file into memory.
func SHA256File(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return [32]byte{}, ftserrors.Wrap(ftserrors.KindFileNotFound, path, err)
		}
		return [32]byte{}, ftserrors.Wrap(ftserrors.KindFileAccessDenied, path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, readBufSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return [32]byte{}, ftserrors.Wrap(ftserrors.KindFileWriteError, path, err)
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// VerifySHA256 reports whether digest equals want, in constant time.
func VerifySHA256(digest, want [32]byte) bool {
	return subtle.ConstantTimeCompare(digest[:], want[:]) == 1
}

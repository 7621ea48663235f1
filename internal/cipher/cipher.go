package cipher

import (
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

// ChunkCipher encrypts and decrypts chunk payloads under a single
// session's key and IV base, deriving a fresh nonce per chunk index so
// the same key never encrypts two chunks under the same IV.
type ChunkCipher struct {
	key    [KeySize]byte
	ivBase [NonceSize]byte
}

// NewChunkCipher constructs a ChunkCipher from derived session keys.
func NewChunkCipher(keys *SessionKeys) *ChunkCipher {
	return &ChunkCipher{key: keys.PayloadKey, ivBase: keys.IVBase}
}

// Encrypt seals plaintext under the chunk's header-derived AAD and
// index-derived nonce, setting FlagEncrypted on the returned header and
// leaving PayloadLength/CRC32 for the caller to fill in once it knows
// the final on-wire payload (ciphertext||tag).
func (c *ChunkCipher) Encrypt(h chunker.Header, plaintext []byte) (chunker.Header, []byte, error) {
	h.Flags |= chunker.FlagEncrypted
	nonce := DeriveChunkNonce(c.ivBase, h.ChunkIndex)
	sealed, err := Seal(c.key[:], nonce[:], h.AADBytes(), plaintext)
	if err != nil {
		return chunker.Header{}, nil, err
	}
	return h, sealed, nil
}

// Decrypt opens the on-wire payload (ciphertext||tag) using the
// chunk's header fields as AAD, verifying the header actually carries
// FlagEncrypted. It never returns a partial plaintext on failure.
func (c *ChunkCipher) Decrypt(h chunker.Header, sealed []byte) ([]byte, error) {
	if !h.Flags.Has(chunker.FlagEncrypted) {
		return nil, ftserrors.New(ftserrors.KindDecryptionFailure, "header missing encrypted flag")
	}
	nonce := DeriveChunkNonce(c.ivBase, h.ChunkIndex)
	return Open(c.key[:], nonce[:], h.AADBytes(), sealed)
}

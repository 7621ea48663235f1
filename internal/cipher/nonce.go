package cipher

import "encoding/binary"

// DeriveNonce builds the 96-bit IV from a per-session base nonce and a
// monotonically increasing counter (spec §4.5: "the key is never used
// to encrypt two chunks with the same IV"). The first 8 bytes of
// ivBase are XORed with the little-endian counter; the remaining 4
// bytes pass through unchanged.
func DeriveNonce(ivBase [NonceSize]byte, counter uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	var counterBytes [8]byte
	binary.LittleEndian.PutUint64(counterBytes[:], counter)
	for i := 0; i < 8; i++ {
		nonce[i] = ivBase[i] ^ counterBytes[i]
	}
	copy(nonce[8:NonceSize], ivBase[8:NonceSize])
	return nonce
}

// DeriveChunkNonce derives the IV for encrypting/decrypting a chunk by
// its index.
func DeriveChunkNonce(ivBase [NonceSize]byte, chunkIndex uint64) [NonceSize]byte {
	return DeriveNonce(ivBase, chunkIndex)
}

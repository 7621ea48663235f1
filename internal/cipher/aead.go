// Package cipher implements the Cipher adapter (spec §4.5): AES-256-GCM
// AEAD over chunk payloads with a per-session-nonce/chunk-index IV
// construction, plus raw-key and password-derived key management.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard nonce
	TagSize   = 16
)

// Seal encrypts and authenticates plaintext under key/nonce/aad,
// returning ciphertext||tag.
func Seal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ftserrors.New(ftserrors.KindEncryptionFailure, "invalid key size")
	}
	if len(nonce) != NonceSize {
		return nil, ftserrors.New(ftserrors.KindEncryptionFailure, "invalid nonce size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindEncryptionFailure, "aes cipher init", err)
	}
	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindEncryptionFailure, "gcm init", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts and verifies ciphertext (which carries its trailing
// tag) under key/nonce/aad. It never returns a partial plaintext on
// authentication failure.
func Open(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ftserrors.New(ftserrors.KindDecryptionFailure, "invalid key size")
	}
	if len(nonce) != NonceSize {
		return nil, ftserrors.New(ftserrors.KindDecryptionFailure, "invalid nonce size")
	}
	if len(ciphertext) < TagSize {
		return nil, ftserrors.New(ftserrors.KindDecryptionFailure, "ciphertext shorter than tag")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindDecryptionFailure, "aes cipher init", err)
	}
	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindDecryptionFailure, "gcm init", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ftserrors.New(ftserrors.KindDecryptionFailure, "authentication tag verification failed")
	}
	return plaintext, nil
}

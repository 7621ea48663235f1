package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

const (
	saltSize = 32

	pbkdf2Iterations = 200_000

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// KdfParams captures the derivation parameters persisted alongside the
// ciphertext metadata so a peer can rederive the same key from a
// passphrase (spec §4.5: "derivation parameters and salt are persisted
// alongside the ciphertext metadata").
type KdfParams struct {
	Kind Kind
	Salt []byte
}

// Kind selects the password-based key derivation function.
type Kind int

const (
	KindPBKDF2SHA256 Kind = iota
	KindArgon2id
)

// NewKdfParams generates a fresh random salt for the given KDF kind.
func NewKdfParams(kind Kind) (*KdfParams, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindKeyDerivationFailure, "salt generation", err)
	}
	return &KdfParams{Kind: kind, Salt: salt}, nil
}

// DeriveKey derives a KeySize-byte key from passphrase under params.
func DeriveKey(passphrase string, params *KdfParams) ([KeySize]byte, error) {
	var out [KeySize]byte
	if len(params.Salt) == 0 {
		return out, ftserrors.New(ftserrors.KindKeyDerivationFailure, "empty kdf salt")
	}
	switch params.Kind {
	case KindPBKDF2SHA256:
		key := pbkdf2.Key([]byte(passphrase), params.Salt, pbkdf2Iterations, KeySize, sha256.New)
		copy(out[:], key)
		return out, nil
	case KindArgon2id:
		key := argon2.IDKey([]byte(passphrase), params.Salt, argon2Time, argon2Memory, argon2Threads, KeySize)
		copy(out[:], key)
		return out, nil
	default:
		return out, ftserrors.New(ftserrors.KindKeyDerivationFailure, "unknown kdf kind")
	}
}

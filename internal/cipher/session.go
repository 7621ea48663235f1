package cipher

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

const sessionInfo = "ftscore-v1-chunk-session"

// SessionKeys holds the per-session material derived for a transfer:
// a payload key for chunk AEAD and a base IV for nonce derivation.
type SessionKeys struct {
	PayloadKey [KeySize]byte
	IVBase     [NonceSize]byte
}

// X25519KeyPair is an ephemeral Diffie-Hellman keypair used to
// establish a shared secret for session-key derivation.
type X25519KeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateX25519 produces a fresh ephemeral keypair.
func GenerateX25519(rand io.Reader) (*X25519KeyPair, error) {
	var kp X25519KeyPair
	if _, err := io.ReadFull(rand, kp.PrivateKey[:]); err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "x25519 key generation", err)
	}
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.PrivateKey)
	return &kp, nil
}

// x25519Exchange computes the ECDH shared secret, rejecting the
// all-zero output that signals an invalid peer public key.
func x25519Exchange(ourPrivate, theirPublic *[32]byte) ([32]byte, error) {
	var shared [32]byte
	curve25519.ScalarMult(&shared, ourPrivate, theirPublic)
	var zero [32]byte
	if shared == zero {
		return shared, ftserrors.New(ftserrors.KindKeyDerivationFailure, "x25519 exchange produced all-zero shared secret")
	}
	return shared, nil
}

// DeriveSessionKeys performs X25519 ECDH followed by HKDF-SHA256,
// salted with the transfer's manifest hash (binding the keys to one
// specific transfer) to produce the session's payload key and IV base.
func DeriveSessionKeys(ourPrivate, theirPublic *[32]byte, manifestHash []byte) (*SessionKeys, error) {
	if len(manifestHash) != 32 {
		return nil, ftserrors.New(ftserrors.KindKeyDerivationFailure, "manifest hash must be 32 bytes")
	}
	shared, err := x25519Exchange(ourPrivate, theirPublic)
	if err != nil {
		return nil, err
	}

	reader := hkdf.New(sha256.New, shared[:], manifestHash, []byte(sessionInfo))
	material := make([]byte, KeySize+NonceSize)
	if _, err := io.ReadFull(reader, material); err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindKeyDerivationFailure, "hkdf expand", err)
	}

	var keys SessionKeys
	copy(keys.PayloadKey[:], material[0:KeySize])
	copy(keys.IVBase[:], material[KeySize:KeySize+NonceSize])
	return &keys, nil
}

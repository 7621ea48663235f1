// Package verify issues Ed25519-signed integrity receipts for
// completed transfers: a canonical statement of which digest was
// expected and which was actually assembled, signed so a receiver can
// prove to a third party that a transfer either matched or didn't.
package verify

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Status is the outcome recorded in a Receipt.
type Status int

const (
	StatusMatch Status = iota + 1
	StatusMismatch
)

func (s Status) String() string {
	switch s {
	case StatusMatch:
		return "MATCH"
	case StatusMismatch:
		return "MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// Receipt is the signed record of one transfer's final integrity
// check: the SHA-256 digest the sender announced versus the one the
// receiver actually assembled.
type Receipt struct {
	TransferId      chunker.TransferId
	Status          Status
	ExpectedSHA256  [32]byte
	AssembledSHA256 [32]byte
	Timestamp       time.Time
	Signature       []byte
	PublicKey       ed25519.PublicKey
}

// canonicalBytes returns the exact byte sequence that gets signed, so
// Sign and Verify always agree on what was attested.
func canonicalBytes(r *Receipt) ([]byte, error) {
	b, err := json.Marshal(struct {
		TransferId string `json:"transfer_id"`
		Status     string `json:"status"`
		Expected   string `json:"expected_sha256"`
		Assembled  string `json:"assembled_sha256"`
		Timestamp  int64  `json:"timestamp"`
	}{
		TransferId: hex.EncodeToString(r.TransferId[:]),
		Status:     r.Status.String(),
		Expected:   hex.EncodeToString(r.ExpectedSHA256[:]),
		Assembled:  hex.EncodeToString(r.AssembledSHA256[:]),
		Timestamp:  r.Timestamp.Unix(),
	})
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "marshal verification receipt", err)
	}
	return b, nil
}

// New builds a Receipt comparing expected and assembled digests,
// without signing it yet.
func New(id chunker.TransferId, expected, assembled [32]byte) *Receipt {
	status := StatusMatch
	if expected != assembled {
		status = StatusMismatch
	}
	return &Receipt{
		TransferId:      id,
		Status:          status,
		ExpectedSHA256:  expected,
		AssembledSHA256: assembled,
		Timestamp:       time.Now(),
	}
}

// Sign attaches a signature over the receipt's canonical form and
// records the corresponding public key.
func (r *Receipt) Sign(priv ed25519.PrivateKey) error {
	canonical, err := canonicalBytes(r)
	if err != nil {
		return err
	}
	r.Signature = ed25519.Sign(priv, canonical)
	r.PublicKey = priv.Public().(ed25519.PublicKey)
	return nil
}

// VerifySignature reports whether the receipt's signature is valid for
// its own recorded public key and contents.
func (r *Receipt) VerifySignature() bool {
	canonical, err := canonicalBytes(r)
	if err != nil {
		return false
	}
	if len(r.PublicKey) != ed25519.PublicKeySize || len(r.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(r.PublicKey, canonical, r.Signature)
}

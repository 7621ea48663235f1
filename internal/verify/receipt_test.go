package verify

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/kcenon/ftscore/internal/chunker"
)

func TestReceiptMatchStatus(t *testing.T) {
	var id chunker.TransferId
	digest := [32]byte{1, 2, 3}

	r := New(id, digest, digest)
	if r.Status != StatusMatch {
		t.Errorf("Status = %v, want StatusMatch", r.Status)
	}
}

func TestReceiptMismatchStatus(t *testing.T) {
	var id chunker.TransferId
	expected := [32]byte{1, 2, 3}
	assembled := [32]byte{4, 5, 6}

	r := New(id, expected, assembled)
	if r.Status != StatusMismatch {
		t.Errorf("Status = %v, want StatusMismatch", r.Status)
	}
}

func TestReceiptSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	var id chunker.TransferId
	id[0] = 7
	digest := [32]byte{9, 9, 9}

	r := New(id, digest, digest)
	if err := r.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !r.VerifySignature() {
		t.Error("VerifySignature should succeed for an untampered receipt")
	}
	if string(r.PublicKey) != string(pub) {
		t.Error("recorded public key does not match signer's public key")
	}
}

func TestReceiptVerifyFailsOnTamperedContent(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	var id chunker.TransferId
	r := New(id, [32]byte{1}, [32]byte{1})
	if err := r.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	r.AssembledSHA256 = [32]byte{2} // tamper after signing
	if r.VerifySignature() {
		t.Error("VerifySignature should fail once the receipt is tampered with")
	}
}

func TestReceiptVerifyFailsWithoutSignature(t *testing.T) {
	var id chunker.TransferId
	r := New(id, [32]byte{1}, [32]byte{1})
	if r.VerifySignature() {
		t.Error("VerifySignature should fail on an unsigned receipt")
	}
}

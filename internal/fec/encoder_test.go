package fec

import "testing"

func TestEncoderInvalidParameters(t *testing.T) {
	if _, err := NewEncoder(0, 2); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := NewEncoder(300, 2); err == nil {
		t.Error("expected error for k=300")
	}
	if _, err := NewEncoder(8, 0); err == nil {
		t.Error("expected error for r=0")
	}
	if _, err := NewEncoder(8, 300); err == nil {
		t.Error("expected error for r=300")
	}
}

func TestEncoderEncodeShapeMismatch(t *testing.T) {
	enc, err := NewEncoder(4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	if _, err := enc.Encode(make([][]byte, 3)); err == nil {
		t.Error("expected error for wrong shard count")
	}

	mismatched := make([][]byte, 4)
	mismatched[0] = make([]byte, 16)
	mismatched[1] = make([]byte, 32)
	mismatched[2] = make([]byte, 16)
	mismatched[3] = make([]byte, 16)
	if _, err := enc.Encode(mismatched); err == nil {
		t.Error("expected error for unequal shard sizes")
	}
}

func TestEncoderParameters(t *testing.T) {
	enc, err := NewEncoder(6, 3)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	k, r := enc.Parameters()
	if k != 6 || r != 3 {
		t.Errorf("Parameters() = (%d, %d), want (6, 3)", k, r)
	}
}

package fec

import (
	"bytes"
	"testing"
)

func buildShards(k, r, size int, fill func(shard int) byte) (data, parity [][]byte) {
	data = make([][]byte, k)
	for i := range data {
		data[i] = make([]byte, size)
		b := fill(i)
		for j := range data[i] {
			data[i][j] = b
		}
	}
	enc, err := NewEncoder(k, r)
	if err != nil {
		panic(err)
	}
	parity, err = enc.Encode(data)
	if err != nil {
		panic(err)
	}
	return data, parity
}

func TestDecoderReconstructsWithinParityBudget(t *testing.T) {
	k, r := 8, 2
	data, parity := buildShards(k, r, 1024, func(i int) byte { return byte(i) })

	all := make([][]byte, k+r)
	copy(all[:k], data)
	copy(all[k:], parity)
	all[3] = nil
	all[7] = nil

	dec, err := NewDecoder(k, r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if err := dec.Reconstruct(all); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	if !bytes.Equal(all[3], data[3]) || !bytes.Equal(all[7], data[7]) {
		t.Error("reconstructed shards do not match originals")
	}
}

func TestDecoderFailsBeyondParityBudget(t *testing.T) {
	k, r := 8, 2
	data, parity := buildShards(k, r, 1024, func(i int) byte { return 0 })

	all := make([][]byte, k+r)
	copy(all[:k], data)
	copy(all[k:], parity)
	all[1], all[3], all[7] = nil, nil, nil

	dec, err := NewDecoder(k, r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if err := dec.Reconstruct(all); err == nil {
		t.Error("expected error when losses exceed parity shard count")
	}
}

func TestDecoderNoMissingShardsIsNoop(t *testing.T) {
	k, r := 8, 2
	data, parity := buildShards(k, r, 1024, func(i int) byte { return 0 })

	all := make([][]byte, k+r)
	copy(all[:k], data)
	copy(all[k:], parity)

	dec, err := NewDecoder(k, r)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if err := dec.Reconstruct(all); err != nil {
		t.Errorf("Reconstruct with no missing shards should succeed: %v", err)
	}
}

func TestDecoderRejectsShardCountMismatch(t *testing.T) {
	dec, err := NewDecoder(8, 2)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if err := dec.Reconstruct(make([][]byte, 9)); err == nil {
		t.Error("expected error for wrong total shard count")
	}
}

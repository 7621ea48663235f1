package assembler

import (
	"crypto/sha256"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/chunker"
)

func splitIntoChunks(t *testing.T, id chunker.TransferId, data []byte, chunkSize int) []chunker.Chunk {
	t.Helper()
	var chunks []chunker.Chunk
	total := uint64((len(data) + chunkSize - 1) / chunkSize)
	if total == 0 {
		total = 1
	}
	for i := uint64(0); i < total; i++ {
		start := int(i) * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		payload := data[start:end]
		var flags chunker.Flags
		if i == 0 {
			flags |= chunker.FlagFirstChunk
		}
		if i == total-1 {
			flags |= chunker.FlagLastChunk
		}
		chunks = append(chunks, chunker.Chunk{
			Header: chunker.Header{
				TransferId:     id,
				ChunkIndex:     i,
				TotalChunks:    total,
				ChunkOffset:    uint64(start),
				PayloadLength:  uint32(len(payload)),
				OriginalLength: uint32(len(payload)),
				Flags:          flags,
				CRC32:          checksum.CRC32(payload),
			},
			Payload: payload,
		})
	}
	return chunks
}

func TestAssemblerRoundTripAnyPermutation(t *testing.T) {
	data := make([]byte, 1024*1024+37)
	rand.New(rand.NewSource(1)).Read(data)

	id := chunker.NewTransferId()
	chunks := splitIntoChunks(t, id, data, 256*1024)

	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.StartSession(id, "out.bin", int64(len(data)), uint64(len(chunks))))

	perm := rand.New(rand.NewSource(2)).Perm(len(chunks))
	for _, i := range perm {
		require.NoError(t, a.ProcessChunk(chunks[i]))
	}

	complete, err := a.IsComplete(id)
	require.NoError(t, err)
	require.True(t, complete)

	digest := sha256.Sum256(data)
	require.NoError(t, a.Finalize(id, &digest))

	got, err := os.ReadFile(filepath.Join(dir, "out.bin"))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestAssemblerDuplicateChunksIdempotent(t *testing.T) {
	data := make([]byte, 300*1024)
	rand.New(rand.NewSource(3)).Read(data)
	id := chunker.NewTransferId()
	chunks := splitIntoChunks(t, id, data, 128*1024)

	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.StartSession(id, "out.bin", int64(len(data)), uint64(len(chunks))))

	for _, c := range chunks {
		require.NoError(t, a.ProcessChunk(c))
	}
	for _, c := range chunks {
		require.NoError(t, a.ProcessChunk(c)) // re-inject, must be no-op
	}

	complete, _ := a.IsComplete(id)
	require.True(t, complete)
	digest := sha256.Sum256(data)
	require.NoError(t, a.Finalize(id, &digest))
}

func TestAssemblerChecksumMismatchRejected(t *testing.T) {
	data := make([]byte, 64*1024)
	id := chunker.NewTransferId()
	chunks := splitIntoChunks(t, id, data, 64*1024)
	chunks[0].Header.CRC32 ^= 0xFF

	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.StartSession(id, "out.bin", int64(len(data)), uint64(len(chunks))))

	err := a.ProcessChunk(chunks[0])
	require.Error(t, err)
}

func TestAssemblerFinalizeMissingChunks(t *testing.T) {
	id := chunker.NewTransferId()
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.StartSession(id, "out.bin", 10, 2))

	err := a.Finalize(id, nil)
	require.Error(t, err)
}

func TestAssemblerEmptyFile(t *testing.T) {
	id := chunker.NewTransferId()
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.StartSession(id, "empty.bin", 0, 1))

	c := chunker.Chunk{Header: chunker.Header{
		TransferId:  id,
		ChunkIndex:  0,
		TotalChunks: 1,
		Flags:       chunker.FlagFirstChunk | chunker.FlagLastChunk,
		CRC32:       checksum.CRC32(nil),
	}}
	require.NoError(t, a.ProcessChunk(c))
	digest := sha256.Sum256(nil)
	require.NoError(t, a.Finalize(id, &digest))

	info, err := os.Stat(filepath.Join(dir, "empty.bin"))
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestAssemblerCancelRemovesTempFile(t *testing.T) {
	id := chunker.NewTransferId()
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.StartSession(id, "out.bin", 10, 1))
	require.NoError(t, a.CancelSession(id))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

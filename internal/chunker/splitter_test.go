package chunker

import (
	"bytes"
	"crypto/sha256"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kcenon/ftscore/internal/checksum"
)

func writeRandomFile(t *testing.T, size int, seed int64) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.bin")
	data := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(data)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSplitterReconstructsFile(t *testing.T) {
	const chunkSize = 256 * 1024
	path := writeRandomFile(t, 1024*1024, 42)
	source, err := os.ReadFile(path)
	require.NoError(t, err)

	s, err := NewSplitter(NewTransferId(), path, chunkSize)
	require.NoError(t, err)
	defer s.Close()

	require.EqualValues(t, 4, s.TotalChunks())

	var out bytes.Buffer
	count := 0
	for {
		c, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.True(t, checksumVerifies(c))
		out.Write(c.Payload)
		count++
	}
	require.Equal(t, 4, count)
	require.True(t, bytes.Equal(out.Bytes(), source))
	require.Equal(t, sha256.Sum256(source), sha256.Sum256(out.Bytes()))
}

func checksumVerifies(c Chunk) bool {
	return checksum.VerifyCRC32(c.Payload, c.Header.CRC32)
}

func TestSplitterEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := NewSplitter(NewTransferId(), path, 64*1024)
	require.NoError(t, err)
	defer s.Close()

	require.EqualValues(t, 1, s.TotalChunks())

	c, err := s.Next()
	require.NoError(t, err)
	require.Empty(t, c.Payload)
	require.True(t, c.Header.Flags.Has(FlagFirstChunk))
	require.True(t, c.Header.Flags.Has(FlagLastChunk))

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSplitterInvalidChunkSize(t *testing.T) {
	path := writeRandomFile(t, 100, 1)
	_, err := NewSplitter(NewTransferId(), path, 10)
	require.Error(t, err)

	_, err = NewSplitter(NewTransferId(), path, 2*1024*1024)
	require.Error(t, err)
}

func TestSplitterExactBoundary(t *testing.T) {
	const chunkSize = 64 * 1024
	path := writeRandomFile(t, chunkSize, 7)
	s, err := NewSplitter(NewTransferId(), path, chunkSize)
	require.NoError(t, err)
	defer s.Close()
	require.EqualValues(t, 1, s.TotalChunks())

	path2 := writeRandomFile(t, chunkSize+1, 8)
	s2, err := NewSplitter(NewTransferId(), path2, chunkSize)
	require.NoError(t, err)
	defer s2.Close()
	require.EqualValues(t, 2, s2.TotalChunks())

	c0, _ := s2.Next()
	require.Len(t, c0.Payload, chunkSize)
	c1, _ := s2.Next()
	require.Len(t, c1.Payload, 1)
	require.True(t, c1.Header.Flags.Has(FlagLastChunk))
}

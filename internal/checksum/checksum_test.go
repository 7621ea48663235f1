package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC32Empty(t *testing.T) {
	require.Equal(t, uint32(0), CRC32(nil))
}

func TestVerifyCRC32(t *testing.T) {
	data := []byte("hello chunk")
	sum := CRC32(data)
	require.True(t, VerifyCRC32(data, sum))
	require.False(t, VerifyCRC32(data, sum+1))
}

func TestSHA256File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	data := make([]byte, 3*readBufSize+17)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := SHA256File(path)
	require.NoError(t, err)

	want := SHA256(data)
	require.True(t, VerifySHA256(got, want))
}

func TestSHA256FileNotFound(t *testing.T) {
	_, err := SHA256File(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

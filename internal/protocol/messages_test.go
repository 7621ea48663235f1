package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kcenon/ftscore/internal/chunker"
)

func TestConnectRoundTrip(t *testing.T) {
	m := Connect{ClientVersion: CurrentVersion, Capabilities: CapCompression | CapResume | CapEncryption}
	decoded, err := DecodeConnect(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestConnectAckRoundTrip(t *testing.T) {
	m := ConnectAck{Accepted: false, Capabilities: 0, Rejected: "ConnectionLimitReached"}
	decoded, err := DecodeConnectAck(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestUploadRequestRoundTrip(t *testing.T) {
	m := UploadRequest{
		TransferId:  chunker.NewTransferId(),
		Filename:    "report-final (v2).pdf",
		FileSize:    123456,
		TotalChunks: 30,
		SHA256:      "abcd1234",
		Flags:       0,
	}
	decoded, err := DecodeUploadRequest(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestUploadAcceptRoundTripWithResumeBitmap(t *testing.T) {
	m := UploadAccept{TransferId: chunker.NewTransferId(), ResumeBitmap: []byte{0xFF, 0x0F}}
	decoded, err := DecodeUploadAccept(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestUploadAcceptRoundTripFreshTransfer(t *testing.T) {
	m := UploadAccept{TransferId: chunker.NewTransferId(), ResumeBitmap: nil}
	decoded, err := DecodeUploadAccept(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m.TransferId, decoded.TransferId)
	require.Empty(t, decoded.ResumeBitmap)
}

func TestChunkDataRoundTrip(t *testing.T) {
	header := chunker.Header{
		TransferId:     chunker.NewTransferId(),
		ChunkIndex:     2,
		TotalChunks:    5,
		ChunkOffset:    8192,
		PayloadLength:  4,
		OriginalLength: 4,
		Flags:          chunker.FlagCompressed,
		CRC32:          0xdeadbeef,
	}
	m := ChunkData{Header: header, Payload: []byte("data")}
	decoded, err := DecodeChunkData(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestChunkNackRoundTrip(t *testing.T) {
	m := ChunkNack{TransferId: chunker.NewTransferId(), ChunkIndex: 7, Reason: "crc mismatch"}
	decoded, err := DecodeChunkNack(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestListResponseRoundTrip(t *testing.T) {
	m := ListResponse{Files: []FileMetadata{
		{Filename: "a.txt", Size: 10, SHA256: "aa", ModifiedAt: 100},
		{Filename: "b.txt", Size: 20, SHA256: "bb", ModifiedAt: 200},
	}}
	decoded, err := DecodeListResponse(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestListResponseRoundTripEmpty(t *testing.T) {
	m := ListResponse{}
	decoded, err := DecodeListResponse(m.Encode())
	require.NoError(t, err)
	require.Empty(t, decoded.Files)
}

func TestErrorMessageRoundTrip(t *testing.T) {
	m := ErrorMessage{Code: 42, Message: "quota exceeded"}
	decoded, err := DecodeErrorMessage(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestDownloadAcceptRoundTrip(t *testing.T) {
	m := DownloadAccept{TransferId: chunker.NewTransferId(), FileSize: 999, TotalChunks: 3, SHA256: "ff"}
	decoded, err := DecodeDownloadAccept(m.Encode())
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

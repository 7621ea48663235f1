package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello chunk")
	require.NoError(t, WriteFrame(&buf, MsgChunkAck, payload))

	frame, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgChunkAck, frame.Type)
	require.Equal(t, payload, frame.Payload)
	require.Equal(t, CurrentVersion, frame.Version)
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgHeartbeat, nil))
	raw := buf.Bytes()
	raw[0] = 'X'

	_, err := ReadFrame(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestReadFrameRejectsVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgHeartbeat, nil))
	raw := buf.Bytes()
	raw[4] = 99 // bump major version byte

	_, err := ReadFrame(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgHeartbeat, nil))
	raw := buf.Bytes()
	raw[9] = 0xFF
	raw[10] = 0xFF
	raw[11] = 0xFF
	raw[12] = 0xFF

	_, err := ReadFrame(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgChunkAck, []byte("0123456789")))
	raw := buf.Bytes()[:len(buf.Bytes())-5]

	_, err := ReadFrame(bytes.NewReader(raw))
	require.Error(t, err)
}

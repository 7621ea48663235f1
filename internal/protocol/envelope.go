// Package protocol implements the wire Protocol Codec and the client
// and server Protocol State Machines (spec §4.8, §4.9).
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Magic identifies a ftscore frame on the wire ("FTS1").
var Magic = [4]byte{'F', 'T', 'S', '1'}

// Version is this build's protocol version, packed as
// major.minor.patch.build, one byte each.
type Version struct {
	Major, Minor, Patch, Build uint8
}

// CurrentVersion is the version stamped on frames this package emits.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0, Build: 0}

func (v Version) encode() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<16 | uint32(v.Patch)<<8 | uint32(v.Build)
}

func decodeVersion(raw uint32) Version {
	return Version{
		Major: uint8(raw >> 24),
		Minor: uint8(raw >> 16),
		Patch: uint8(raw >> 8),
		Build: uint8(raw),
	}
}

// MessageType tags a frame's payload schema.
type MessageType uint8

const (
	// Session 0x01-0x05
	MsgConnect        MessageType = 0x01
	MsgConnectAck     MessageType = 0x02
	MsgDisconnect     MessageType = 0x03
	MsgHeartbeat      MessageType = 0x04
	MsgHeartbeatAck   MessageType = 0x05

	// Upload 0x10-0x14
	MsgUploadRequest  MessageType = 0x10
	MsgUploadAccept   MessageType = 0x11
	MsgUploadReject   MessageType = 0x12
	MsgUploadComplete MessageType = 0x13
	MsgUploadAck      MessageType = 0x14

	// Data 0x20-0x22
	MsgChunkData MessageType = 0x20
	MsgChunkAck  MessageType = 0x21
	MsgChunkNack MessageType = 0x22

	// Resume 0x30-0x31
	MsgResumeRequest  MessageType = 0x30
	MsgResumeResponse MessageType = 0x31

	// Control 0x40-0x43
	MsgTransferCancel MessageType = 0x40
	MsgTransferPause  MessageType = 0x41
	MsgTransferResume MessageType = 0x42
	MsgTransferVerify MessageType = 0x43

	// Download 0x50-0x54
	MsgDownloadRequest  MessageType = 0x50
	MsgDownloadAccept   MessageType = 0x51
	MsgDownloadReject   MessageType = 0x52
	MsgDownloadComplete MessageType = 0x53
	MsgDownloadAck      MessageType = 0x54

	// Listing 0x60-0x61
	MsgListRequest  MessageType = 0x60
	MsgListResponse MessageType = 0x61

	// Control 0xFF
	MsgError MessageType = 0xFF
)

// MaxPayloadSize bounds a single frame's payload length (spec §4.8:
// "payload length exceeding a configured maximum" is a ProtocolError).
const MaxPayloadSize = 64 * 1024 * 1024

// Frame is a decoded envelope: the header fields plus the raw,
// still-encoded payload bytes for the caller to parse per MessageType.
type Frame struct {
	Version Version
	Type    MessageType
	Payload []byte
}

// WriteFrame encodes and writes a full frame (magic, version, type,
// length, payload) to w.
func WriteFrame(w io.Writer, msgType MessageType, payload []byte) error {
	header := make([]byte, 4+4+1+4)
	copy(header[0:4], Magic[:])
	binary.BigEndian.PutUint32(header[4:8], CurrentVersion.encode())
	header[8] = byte(msgType)
	binary.BigEndian.PutUint32(header[9:13], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return ftserrors.Wrap(ftserrors.KindConnectionFailed, "write frame header", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return ftserrors.Wrap(ftserrors.KindConnectionFailed, "write frame payload", err)
		}
	}
	return nil
}

// ReadFrame reads and validates a full frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 4+4+1+4)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return Frame{}, err
		}
		return Frame{}, ftserrors.Wrap(ftserrors.KindProtocolError, "truncated frame header", err)
	}

	if [4]byte(header[0:4]) != Magic {
		return Frame{}, ftserrors.New(ftserrors.KindProtocolError, "bad magic")
	}
	version := decodeVersion(binary.BigEndian.Uint32(header[4:8]))
	if version.Major != CurrentVersion.Major {
		return Frame{}, ftserrors.New(ftserrors.KindProtocolVersionMismatch, "unsupported major version")
	}

	msgType := MessageType(header[8])
	length := binary.BigEndian.Uint32(header[9:13])
	if length > MaxPayloadSize {
		return Frame{}, ftserrors.New(ftserrors.KindProtocolError, "payload length exceeds maximum")
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, ftserrors.Wrap(ftserrors.KindProtocolError, "truncated frame payload", err)
		}
	}

	return Frame{Version: version, Type: msgType, Payload: payload}, nil
}

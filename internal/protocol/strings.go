package protocol

import (
	"encoding/binary"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// putString appends a 4-byte big-endian length prefix followed by s's
// UTF-8 bytes.
func putString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	buf = append(buf, s...)
	return buf
}

// getString reads a length-prefixed UTF-8 string from the front of
// buf, returning the string and the remaining bytes.
func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, ftserrors.New(ftserrors.KindProtocolError, "truncated string length")
	}
	n := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	if uint64(n) > uint64(len(buf)) {
		return "", nil, ftserrors.New(ftserrors.KindProtocolError, "truncated string body")
	}
	return string(buf[:n]), buf[n:], nil
}

// putBytes appends a 4-byte big-endian length prefix followed by b.
func putBytes(buf []byte, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	buf = append(buf, b...)
	return buf
}

func getBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, ftserrors.New(ftserrors.KindProtocolError, "truncated bytes length")
	}
	n := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	if uint64(n) > uint64(len(buf)) {
		return nil, nil, ftserrors.New(ftserrors.KindProtocolError, "truncated bytes body")
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, buf[n:], nil
}

func requireLen(buf []byte, n int) error {
	if len(buf) < n {
		return ftserrors.New(ftserrors.KindProtocolError, "truncated fixed field")
	}
	return nil
}

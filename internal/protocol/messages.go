package protocol

import (
	"encoding/binary"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

func putTransferId(buf []byte, id chunker.TransferId) []byte {
	return append(buf, id[:]...)
}

func getTransferId(buf []byte) (chunker.TransferId, []byte, error) {
	if err := requireLen(buf, 16); err != nil {
		return chunker.TransferId{}, nil, err
	}
	var id chunker.TransferId
	copy(id[:], buf[:16])
	return id, buf[16:], nil
}

// Connect is sent by the client to open a session (spec §4.8/§4.9).
type Connect struct {
	ClientVersion Version
	Capabilities  Capabilities
}

func (m Connect) Encode() []byte {
	buf := make([]byte, 0, 4+4)
	buf = binary.BigEndian.AppendUint32(buf, m.ClientVersion.encode())
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.Capabilities))
	return buf
}

func DecodeConnect(buf []byte) (Connect, error) {
	if err := requireLen(buf, 8); err != nil {
		return Connect{}, err
	}
	return Connect{
		ClientVersion: decodeVersion(binary.BigEndian.Uint32(buf[0:4])),
		Capabilities:  Capabilities(binary.BigEndian.Uint32(buf[4:8])),
	}, nil
}

// ConnectAck is the server's reply, returning the intersecting
// capability set or a rejection reason.
type ConnectAck struct {
	Accepted     bool
	Capabilities Capabilities
	Rejected     string // reason, e.g. "ConnectionLimitReached"; empty if Accepted
}

func (m ConnectAck) Encode() []byte {
	buf := make([]byte, 0, 1+4)
	if m.Accepted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.Capabilities))
	buf = putString(buf, m.Rejected)
	return buf
}

func DecodeConnectAck(buf []byte) (ConnectAck, error) {
	if err := requireLen(buf, 5); err != nil {
		return ConnectAck{}, err
	}
	accepted := buf[0] != 0
	caps := Capabilities(binary.BigEndian.Uint32(buf[1:5]))
	reason, _, err := getString(buf[5:])
	if err != nil {
		return ConnectAck{}, err
	}
	return ConnectAck{Accepted: accepted, Capabilities: caps, Rejected: reason}, nil
}

// Heartbeat carries no payload; HeartbeatAck mirrors it. Disconnect
// carries an optional reason string.
type Disconnect struct {
	Reason string
}

func (m Disconnect) Encode() []byte { return putString(nil, m.Reason) }

func DecodeDisconnect(buf []byte) (Disconnect, error) {
	reason, _, err := getString(buf)
	if err != nil {
		return Disconnect{}, err
	}
	return Disconnect{Reason: reason}, nil
}

// UploadRequest announces an incoming file (spec §4.9 step 1).
type UploadRequest struct {
	TransferId  chunker.TransferId
	Filename    string
	FileSize    uint64
	TotalChunks uint64
	SHA256      string
	Flags       uint32
}

func (m UploadRequest) Encode() []byte {
	buf := make([]byte, 0, 16+8+8+4)
	buf = putTransferId(buf, m.TransferId)
	buf = binary.BigEndian.AppendUint64(buf, m.FileSize)
	buf = binary.BigEndian.AppendUint64(buf, m.TotalChunks)
	buf = binary.BigEndian.AppendUint32(buf, m.Flags)
	buf = putString(buf, m.Filename)
	buf = putString(buf, m.SHA256)
	return buf
}

func DecodeUploadRequest(buf []byte) (UploadRequest, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return UploadRequest{}, err
	}
	if err := requireLen(rest, 8+8+4); err != nil {
		return UploadRequest{}, err
	}
	fileSize := binary.BigEndian.Uint64(rest[0:8])
	totalChunks := binary.BigEndian.Uint64(rest[8:16])
	flags := binary.BigEndian.Uint32(rest[16:20])
	rest = rest[20:]

	filename, rest, err := getString(rest)
	if err != nil {
		return UploadRequest{}, err
	}
	sha, _, err := getString(rest)
	if err != nil {
		return UploadRequest{}, err
	}
	return UploadRequest{
		TransferId: id, Filename: filename, FileSize: fileSize,
		TotalChunks: totalChunks, SHA256: sha, Flags: flags,
	}, nil
}

// UploadAccept admits the upload, optionally carrying a resume bitmap
// of chunks the server already has.
type UploadAccept struct {
	TransferId   chunker.TransferId
	ResumeBitmap []byte // empty if this is a fresh transfer
}

func (m UploadAccept) Encode() []byte {
	buf := make([]byte, 0, 16)
	buf = putTransferId(buf, m.TransferId)
	buf = putBytes(buf, m.ResumeBitmap)
	return buf
}

func DecodeUploadAccept(buf []byte) (UploadAccept, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return UploadAccept{}, err
	}
	bitmap, _, err := getBytes(rest)
	if err != nil {
		return UploadAccept{}, err
	}
	return UploadAccept{TransferId: id, ResumeBitmap: bitmap}, nil
}

// UploadReject declines the upload with a reason (e.g. "QuotaExceeded",
// "FileLocked").
type UploadReject struct {
	TransferId chunker.TransferId
	Reason     string
}

func (m UploadReject) Encode() []byte {
	buf := make([]byte, 0, 16)
	buf = putTransferId(buf, m.TransferId)
	buf = putString(buf, m.Reason)
	return buf
}

func DecodeUploadReject(buf []byte) (UploadReject, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return UploadReject{}, err
	}
	reason, _, err := getString(rest)
	if err != nil {
		return UploadReject{}, err
	}
	return UploadReject{TransferId: id, Reason: reason}, nil
}

// UploadComplete signals the client has sent every chunk.
type UploadComplete struct {
	TransferId chunker.TransferId
}

func (m UploadComplete) Encode() []byte { return putTransferId(nil, m.TransferId) }

func DecodeUploadComplete(buf []byte) (UploadComplete, error) {
	id, _, err := getTransferId(buf)
	if err != nil {
		return UploadComplete{}, err
	}
	return UploadComplete{TransferId: id}, nil
}

// UploadAck is the server's final verdict after SHA-256 verification.
type UploadAck struct {
	TransferId chunker.TransferId
	Success    bool
	Error      string
}

func (m UploadAck) Encode() []byte {
	buf := make([]byte, 0, 16+1)
	buf = putTransferId(buf, m.TransferId)
	if m.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = putString(buf, m.Error)
	return buf
}

func DecodeUploadAck(buf []byte) (UploadAck, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return UploadAck{}, err
	}
	if err := requireLen(rest, 1); err != nil {
		return UploadAck{}, err
	}
	success := rest[0] != 0
	errMsg, _, err := getString(rest[1:])
	if err != nil {
		return UploadAck{}, err
	}
	return UploadAck{TransferId: id, Success: success, Error: errMsg}, nil
}

// ChunkData carries one chunk's encoded header and on-wire payload.
type ChunkData struct {
	Header  chunker.Header
	Payload []byte
}

func (m ChunkData) Encode() []byte {
	buf := make([]byte, 0, chunker.HeaderSize+len(m.Payload))
	buf = append(buf, m.Header.Encode()...)
	buf = append(buf, m.Payload...)
	return buf
}

func DecodeChunkData(buf []byte) (ChunkData, error) {
	h, rest, err := chunker.DecodeHeader(buf)
	if err != nil {
		return ChunkData{}, err
	}
	if uint64(len(rest)) < uint64(h.PayloadLength) {
		return ChunkData{}, ftserrors.New(ftserrors.KindProtocolError, "truncated chunk payload")
	}
	return ChunkData{Header: h, Payload: rest[:h.PayloadLength]}, nil
}

// ChunkAck acknowledges one chunk index.
type ChunkAck struct {
	TransferId chunker.TransferId
	ChunkIndex uint64
}

func (m ChunkAck) Encode() []byte {
	buf := make([]byte, 0, 24)
	buf = putTransferId(buf, m.TransferId)
	buf = binary.BigEndian.AppendUint64(buf, m.ChunkIndex)
	return buf
}

func DecodeChunkAck(buf []byte) (ChunkAck, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return ChunkAck{}, err
	}
	if err := requireLen(rest, 8); err != nil {
		return ChunkAck{}, err
	}
	return ChunkAck{TransferId: id, ChunkIndex: binary.BigEndian.Uint64(rest)}, nil
}

// ChunkNack rejects one chunk index with a reason, triggering
// retransmission by the sender.
type ChunkNack struct {
	TransferId chunker.TransferId
	ChunkIndex uint64
	Reason     string
}

func (m ChunkNack) Encode() []byte {
	buf := make([]byte, 0, 24)
	buf = putTransferId(buf, m.TransferId)
	buf = binary.BigEndian.AppendUint64(buf, m.ChunkIndex)
	buf = putString(buf, m.Reason)
	return buf
}

func DecodeChunkNack(buf []byte) (ChunkNack, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return ChunkNack{}, err
	}
	if err := requireLen(rest, 8); err != nil {
		return ChunkNack{}, err
	}
	index := binary.BigEndian.Uint64(rest[:8])
	reason, _, err := getString(rest[8:])
	if err != nil {
		return ChunkNack{}, err
	}
	return ChunkNack{TransferId: id, ChunkIndex: index, Reason: reason}, nil
}

// ResumeRequest asks the server whether it has partial state for a
// previously-started transfer.
type ResumeRequest struct {
	TransferId chunker.TransferId
}

func (m ResumeRequest) Encode() []byte { return putTransferId(nil, m.TransferId) }

func DecodeResumeRequest(buf []byte) (ResumeRequest, error) {
	id, _, err := getTransferId(buf)
	if err != nil {
		return ResumeRequest{}, err
	}
	return ResumeRequest{TransferId: id}, nil
}

// ResumeResponse returns the server's view of already-received
// chunks, empty if it has no record.
type ResumeResponse struct {
	TransferId chunker.TransferId
	Bitmap     []byte
}

func (m ResumeResponse) Encode() []byte {
	buf := make([]byte, 0, 16)
	buf = putTransferId(buf, m.TransferId)
	buf = putBytes(buf, m.Bitmap)
	return buf
}

func DecodeResumeResponse(buf []byte) (ResumeResponse, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return ResumeResponse{}, err
	}
	bitmap, _, err := getBytes(rest)
	if err != nil {
		return ResumeResponse{}, err
	}
	return ResumeResponse{TransferId: id, Bitmap: bitmap}, nil
}

// TransferControl covers CANCEL/PAUSE/RESUME, which share a shape.
type TransferControl struct {
	TransferId chunker.TransferId
}

func (m TransferControl) Encode() []byte { return putTransferId(nil, m.TransferId) }

func DecodeTransferControl(buf []byte) (TransferControl, error) {
	id, _, err := getTransferId(buf)
	if err != nil {
		return TransferControl{}, err
	}
	return TransferControl{TransferId: id}, nil
}

// TransferVerify requests (or returns, from the server) a signed
// integrity receipt for a completed transfer (supplemented feature;
// see internal/verify).
type TransferVerify struct {
	TransferId chunker.TransferId
	Receipt    []byte // empty on request, populated on response
}

func (m TransferVerify) Encode() []byte {
	buf := make([]byte, 0, 16)
	buf = putTransferId(buf, m.TransferId)
	buf = putBytes(buf, m.Receipt)
	return buf
}

func DecodeTransferVerify(buf []byte) (TransferVerify, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return TransferVerify{}, err
	}
	receipt, _, err := getBytes(rest)
	if err != nil {
		return TransferVerify{}, err
	}
	return TransferVerify{TransferId: id, Receipt: receipt}, nil
}

// ListSortField/ListSortOrder select file listing order (supplemented
// feature grounded on original_source's listing enums).
type ListSortField uint8

const (
	SortByName ListSortField = iota
	SortBySize
	SortByModifiedAt
)

type ListSortOrder uint8

const (
	SortAscending ListSortOrder = iota
	SortDescending
)

// ListRequest asks the server for its file listing.
type ListRequest struct {
	SortField ListSortField
	SortOrder ListSortOrder
	Prefix    string
}

func (m ListRequest) Encode() []byte {
	buf := []byte{byte(m.SortField), byte(m.SortOrder)}
	buf = putString(buf, m.Prefix)
	return buf
}

func DecodeListRequest(buf []byte) (ListRequest, error) {
	if err := requireLen(buf, 2); err != nil {
		return ListRequest{}, err
	}
	prefix, _, err := getString(buf[2:])
	if err != nil {
		return ListRequest{}, err
	}
	return ListRequest{SortField: ListSortField(buf[0]), SortOrder: ListSortOrder(buf[1]), Prefix: prefix}, nil
}

// FileMetadata is one listing entry (spec §3).
type FileMetadata struct {
	Filename   string
	Size       uint64
	SHA256     string
	ModifiedAt int64 // unix seconds
}

// ListResponse returns the server's file listing.
type ListResponse struct {
	Files []FileMetadata
}

func (m ListResponse) Encode() []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(m.Files)))
	for _, f := range m.Files {
		buf = putString(buf, f.Filename)
		buf = binary.BigEndian.AppendUint64(buf, f.Size)
		buf = putString(buf, f.SHA256)
		buf = binary.BigEndian.AppendUint64(buf, uint64(f.ModifiedAt))
	}
	return buf
}

func DecodeListResponse(buf []byte) (ListResponse, error) {
	if err := requireLen(buf, 4); err != nil {
		return ListResponse{}, err
	}
	count := binary.BigEndian.Uint32(buf)
	rest := buf[4:]
	files := make([]FileMetadata, 0, count)
	for i := uint32(0); i < count; i++ {
		var f FileMetadata
		var err error
		f.Filename, rest, err = getString(rest)
		if err != nil {
			return ListResponse{}, err
		}
		if err := requireLen(rest, 8); err != nil {
			return ListResponse{}, err
		}
		f.Size = binary.BigEndian.Uint64(rest[:8])
		rest = rest[8:]
		f.SHA256, rest, err = getString(rest)
		if err != nil {
			return ListResponse{}, err
		}
		if err := requireLen(rest, 8); err != nil {
			return ListResponse{}, err
		}
		f.ModifiedAt = int64(binary.BigEndian.Uint64(rest[:8]))
		rest = rest[8:]
		files = append(files, f)
	}
	return ListResponse{Files: files}, nil
}

// ErrorMessage carries a numeric error code plus a human-readable
// message (spec §4.8: "ERROR carries a numeric code and a UTF-8
// message").
type ErrorMessage struct {
	Code    uint32
	Message string
}

func (m ErrorMessage) Encode() []byte {
	buf := binary.BigEndian.AppendUint32(nil, m.Code)
	buf = putString(buf, m.Message)
	return buf
}

func DecodeErrorMessage(buf []byte) (ErrorMessage, error) {
	if err := requireLen(buf, 4); err != nil {
		return ErrorMessage{}, err
	}
	msg, _, err := getString(buf[4:])
	if err != nil {
		return ErrorMessage{}, err
	}
	return ErrorMessage{Code: binary.BigEndian.Uint32(buf[:4]), Message: msg}, nil
}

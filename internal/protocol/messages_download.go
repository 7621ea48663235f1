package protocol

import "github.com/kcenon/ftscore/internal/chunker"

// Download messages are symmetric with their Upload counterparts,
// roles swapped (spec §4.9: "Download sequence is symmetric with
// roles swapped; the server plays sender").

// DownloadRequest asks the server to send a named file.
type DownloadRequest struct {
	TransferId chunker.TransferId
	Filename   string
}

func (m DownloadRequest) Encode() []byte {
	buf := putTransferId(nil, m.TransferId)
	return putString(buf, m.Filename)
}

func DecodeDownloadRequest(buf []byte) (DownloadRequest, error) {
	id, rest, err := getTransferId(buf)
	if err != nil {
		return DownloadRequest{}, err
	}
	name, _, err := getString(rest)
	if err != nil {
		return DownloadRequest{}, err
	}
	return DownloadRequest{TransferId: id, Filename: name}, nil
}

// DownloadAccept admits the download, describing the file to send.
type DownloadAccept struct {
	TransferId  chunker.TransferId
	FileSize    uint64
	TotalChunks uint64
	SHA256      string
}

func (m DownloadAccept) Encode() []byte {
	u := UploadRequest{TransferId: m.TransferId, FileSize: m.FileSize, TotalChunks: m.TotalChunks, SHA256: m.SHA256}
	return u.Encode()
}

func DecodeDownloadAccept(buf []byte) (DownloadAccept, error) {
	u, err := DecodeUploadRequest(buf)
	if err != nil {
		return DownloadAccept{}, err
	}
	return DownloadAccept{TransferId: u.TransferId, FileSize: u.FileSize, TotalChunks: u.TotalChunks, SHA256: u.SHA256}, nil
}

// DownloadReject declines the download with a reason (e.g.
// "FileNotFound", "PolicyDenied").
type DownloadReject struct {
	TransferId chunker.TransferId
	Reason     string
}

func (m DownloadReject) Encode() []byte {
	r := UploadReject{TransferId: m.TransferId, Reason: m.Reason}
	return r.Encode()
}

func DecodeDownloadReject(buf []byte) (DownloadReject, error) {
	r, err := DecodeUploadReject(buf)
	if err != nil {
		return DownloadReject{}, err
	}
	return DownloadReject{TransferId: r.TransferId, Reason: r.Reason}, nil
}

// DownloadComplete signals the server has sent every chunk.
type DownloadComplete struct {
	TransferId chunker.TransferId
}

func (m DownloadComplete) Encode() []byte { return putTransferId(nil, m.TransferId) }

func DecodeDownloadComplete(buf []byte) (DownloadComplete, error) {
	id, _, err := getTransferId(buf)
	if err != nil {
		return DownloadComplete{}, err
	}
	return DownloadComplete{TransferId: id}, nil
}

// DownloadAck is the client's final verdict after SHA-256 verification
// of the assembled file.
type DownloadAck struct {
	TransferId chunker.TransferId
	Success    bool
	Error      string
}

func (m DownloadAck) Encode() []byte {
	a := UploadAck{TransferId: m.TransferId, Success: m.Success, Error: m.Error}
	return a.Encode()
}

func DecodeDownloadAck(buf []byte) (DownloadAck, error) {
	a, err := DecodeUploadAck(buf)
	if err != nil {
		return DownloadAck{}, err
	}
	return DownloadAck{TransferId: a.TransferId, Success: a.Success, Error: a.Error}, nil
}

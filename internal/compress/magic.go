package compress

import "bytes"

// precompressedSignatures lists the magic-byte prefixes of formats the
// adaptive compressor treats as already-incompressible (spec §4.5).
var precompressedSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // ZIP
	{0x50, 0x4B, 0x05, 0x06}, // ZIP (empty archive)
	{0x1F, 0x8B},             // GZIP
	{0x28, 0xB5, 0x2F, 0xFD}, // ZSTD
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, // XZ
	{0x42, 0x5A, 0x68},       // BZIP2
	{0x04, 0x22, 0x4D, 0x18}, // LZ4 frame
	{0xFF, 0xD8, 0xFF},       // JPEG
	{0x89, 0x50, 0x4E, 0x47}, // PNG
	{0x47, 0x49, 0x46, 0x38}, // GIF
	{0x52, 0x49, 0x46, 0x46}, // RIFF (WEBP container)
	{0xFF, 0xFB},             // MP3 (MPEG-1 Layer 3, no ID3)
	{0x49, 0x44, 0x33},       // MP3 (ID3 tag prefix)
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, // 7z
}

// mp4FtypOffset is where the "ftyp" box type appears in a typical MP4.
const mp4FtypOffset = 4

var mp4Ftyp = []byte("ftyp")

// isPrecompressed inspects the first bytes of chunk (conventionally a 4
// KiB prefix) for a known incompressible-format signature.
func isPrecompressed(prefix []byte) bool {
	for _, sig := range precompressedSignatures {
		if len(prefix) >= len(sig) && bytes.Equal(prefix[:len(sig)], sig) {
			return true
		}
	}
	if len(prefix) >= mp4FtypOffset+4 && bytes.Equal(prefix[mp4FtypOffset:mp4FtypOffset+4], mp4Ftyp) {
		return true
	}
	return false
}

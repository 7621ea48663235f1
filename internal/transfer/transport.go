// Package transfer implements the Transfer Coordinator (spec §4.10): a
// per-transfer task that drives a Splitter or Assembler through the
// Compressor/Cipher/Limiter pipeline and the protocol codec.
package transfer

import "io"

// Transport is the collaborator interface the core consumes for
// reliable, ordered byte streams (spec §6). The concrete QUIC
// implementation lives outside this package (internal/transportquic).
type Transport interface {
	io.Reader
	io.Writer
	Close() error
}

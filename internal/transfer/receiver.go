package transfer

import (
	"context"
	"encoding/hex"

	"go.opentelemetry.io/otel/trace"

	"github.com/kcenon/ftscore/internal/assembler"
	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/observability"
	"github.com/kcenon/ftscore/internal/protocol"
	"github.com/kcenon/ftscore/internal/resume"
	"github.com/kcenon/ftscore/internal/server/dedup"
)

// ReceiverCoordinator feeds incoming CHUNK_DATA frames through the
// decrypt/decompress pipeline into an Assembler, updating the resume
// store and replying ACK/NACK per chunk (spec §4.10 receive loop).
type ReceiverCoordinator struct {
	assembler *assembler.Assembler
	resume    *resume.Store
	pipeline  Pipeline
	fsm       *protocol.TransferFSM

	// Dedup, if set, records the fingerprint of every verified chunk
	// payload not already present. It does not change what is written:
	// every chunk is still handed to the assembler.
	Dedup *dedup.Cache

	// Metrics, if set, records received/retransmitted chunk counters.
	Metrics *observability.Metrics

	span trace.Span

	OnChunkReceived func(index uint64)
}

// NewReceiverCoordinator constructs a receiver coordinator over an
// already-started Assembler session.
func NewReceiverCoordinator(asm *assembler.Assembler, store *resume.Store, pipeline Pipeline) *ReceiverCoordinator {
	return &ReceiverCoordinator{
		assembler: asm,
		resume:    store,
		pipeline:  pipeline,
		fsm:       protocol.NewTransferFSM(),
	}
}

func (c *ReceiverCoordinator) FSM() *protocol.TransferFSM { return c.fsm }

// HandleChunk decrypts/decompresses and hands one CHUNK_DATA message
// to the assembler, returning the ACK or NACK frame to write back.
func (c *ReceiverCoordinator) HandleChunk(id chunker.TransferId, msg protocol.ChunkData) (protocol.MessageType, []byte) {
	if c.span == nil {
		_, c.span = tracer.Start(context.Background(), "transfer.receive")
	}

	payload := msg.Payload
	header := msg.Header

	if !checksum.VerifyCRC32(payload, header.CRC32) {
		return nackFrame(id, header.ChunkIndex, "crc mismatch")
	}

	if header.Flags.Has(chunker.FlagEncrypted) {
		if c.pipeline.Cipher == nil {
			return nackFrame(id, header.ChunkIndex, "encryption not configured")
		}
		plain, err := c.pipeline.Cipher.Decrypt(header, payload)
		if err != nil {
			zlog().Warn().Uint64("chunk_index", header.ChunkIndex).Err(err).Msg("chunk decryption failed")
			return nackFrame(id, header.ChunkIndex, "decryption failed")
		}
		payload = plain
	}

	if header.Flags.Has(chunker.FlagCompressed) {
		if c.pipeline.Compressor == nil {
			return nackFrame(id, header.ChunkIndex, "compression not configured")
		}
		out, err := c.pipeline.Compressor.Decompress(payload, int(header.OriginalLength))
		if err != nil {
			return nackFrame(id, header.ChunkIndex, "decompression failed")
		}
		payload = out
	}

	verified := chunker.Chunk{Header: header, Payload: payload}
	verified.Header.CRC32 = checksum.CRC32(payload)

	if c.Dedup != nil {
		fingerprint := dedup.Fingerprint(payload)
		if !c.Dedup.Has(fingerprint) {
			if err := c.Dedup.Put(fingerprint); err != nil {
				zlog().Warn().Err(err).Msg("dedup cache write failed")
			}
		}
	}

	if err := c.assembler.ProcessChunk(verified); err != nil {
		return nackFrame(id, header.ChunkIndex, err.Error())
	}

	if c.Metrics != nil {
		c.Metrics.RecordChunkReceived(len(payload))
	}

	if c.resume != nil {
		if err := c.resume.MarkChunkReceived(id, header.ChunkIndex); err != nil {
			zlog().Warn().Err(err).Msg("resume checkpoint failed")
		}
	}
	if c.OnChunkReceived != nil {
		c.OnChunkReceived(header.ChunkIndex)
	}

	ack := protocol.ChunkAck{TransferId: id, ChunkIndex: header.ChunkIndex}
	return protocol.MsgChunkAck, ack.Encode()
}

func nackFrame(id chunker.TransferId, index uint64, reason string) (protocol.MessageType, []byte) {
	nack := protocol.ChunkNack{TransferId: id, ChunkIndex: index, Reason: reason}
	return protocol.MsgChunkNack, nack.Encode()
}

// Finalize completes the receive side: checks the bitmap is full and
// finalizes the assembler session against the expected SHA-256.
func (c *ReceiverCoordinator) Finalize(id chunker.TransferId, expectedSHA256 string) error {
	if c.span != nil {
		defer c.span.End()
	}

	complete, err := c.assembler.IsComplete(id)
	if err != nil {
		return err
	}
	if !complete {
		return ftserrors.New(ftserrors.KindMissingChunks, "transfer incomplete at finalize")
	}

	var want *[32]byte
	if expectedSHA256 != "" {
		decoded, err := hex.DecodeString(expectedSHA256)
		if err != nil || len(decoded) != 32 {
			return ftserrors.New(ftserrors.KindFileHashMismatch, "malformed expected sha256 digest")
		}
		var arr [32]byte
		copy(arr[:], decoded)
		want = &arr
	}

	if err := c.assembler.Finalize(id, want); err != nil {
		return err
	}
	if c.resume != nil {
		return c.resume.DeleteState(id)
	}
	return nil
}

package transfer

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/cipher"
	"github.com/kcenon/ftscore/internal/compress"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/observability"
	"github.com/kcenon/ftscore/internal/protocol"
	"github.com/kcenon/ftscore/internal/ratelimit"
)

// zlog returns the process-wide logger's fluent zerolog builder, so
// library call sites log through whatever Logger the process installed
// with observability.SetDefault rather than zerolog's bare global.
func zlog() *zerolog.Logger { return observability.Default().Zerolog() }

var tracer = otel.Tracer("github.com/kcenon/ftscore/internal/transfer")

// Pipeline bundles the per-chunk transforms a Coordinator drives. Any
// field left nil is treated as a no-op/pass-through (e.g. a disabled
// compressor or cipher).
type Pipeline struct {
	Compressor *compress.Compressor
	Cipher     *cipher.ChunkCipher
	Limiter    *ratelimit.TokenBucket
}

// SenderCoordinator drives a Splitter's chunks through the transform
// pipeline and onto a Transport, stopping between chunks when the
// context is cancelled and retrying NACKed chunks up to a configured
// budget (spec §4.10 send loop). The send loop does not check for a
// paused state; it keeps sending until the splitter is exhausted, the
// context is cancelled, or a chunk fails.
type SenderCoordinator struct {
	splitter *chunker.Splitter
	pipeline Pipeline
	retryBudget int
	fsm      *protocol.TransferFSM

	// Metrics, if set, records sent/retransmitted chunk counters.
	Metrics *observability.Metrics

	OnChunkSent func(index uint64)
}

// NewSenderCoordinator constructs a sender coordinator over an
// already-open Splitter.
func NewSenderCoordinator(splitter *chunker.Splitter, pipeline Pipeline, retryBudget int) *SenderCoordinator {
	return &SenderCoordinator{
		splitter:    splitter,
		pipeline:    pipeline,
		retryBudget: retryBudget,
		fsm:         protocol.NewTransferFSM(),
	}
}

// FSM exposes the coordinator's transfer state machine.
func (c *SenderCoordinator) FSM() *protocol.TransferFSM { return c.fsm }

// encodeChunk applies compress-then-encrypt to one raw chunk and
// returns the wire-ready ChunkData message.
func (c *SenderCoordinator) encodeChunk(chunk chunker.Chunk) (protocol.ChunkData, error) {
	payload := chunk.Payload
	header := chunk.Header

	if c.pipeline.Compressor != nil {
		out, compressed, err := c.pipeline.Compressor.Compress(payload)
		if err != nil {
			return protocol.ChunkData{}, err
		}
		if compressed {
			payload = out
			header.Flags |= chunker.FlagCompressed
		}
	}

	if c.pipeline.Cipher != nil {
		sealedHeader, sealed, err := c.pipeline.Cipher.Encrypt(header, payload)
		if err != nil {
			return protocol.ChunkData{}, err
		}
		header, payload = sealedHeader, sealed
	}

	header.PayloadLength = uint32(len(payload))
	header.CRC32 = chunkCRC(payload)

	return protocol.ChunkData{Header: header, Payload: payload}, nil
}

// SendAll drains the splitter, writing each chunk as a CHUNK_DATA
// frame and waiting for either CHUNK_ACK or CHUNK_NACK before moving
// to the next index, retrying NACKs up to retryBudget times (spec
// §4.9 upload sequence step 3-4). skip reports whether a chunk index
// should be skipped because the server already has it (resume).
func (c *SenderCoordinator) SendAll(ctx context.Context, transport Transport, skip func(index uint64) bool, readAck func() (protocol.MessageType, []byte, error)) error {
	ctx, span := tracer.Start(ctx, "transfer.send")
	defer span.End()

	if err := c.fsm.Transition(protocol.Transferring); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ftserrors.New(ftserrors.KindTransferTimeout, "send loop cancelled")
		default:
		}

		chunk, err := c.splitter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if skip != nil && skip(chunk.Header.ChunkIndex) {
			continue
		}

		if err := c.sendChunkWithRetry(ctx, transport, chunk, readAck); err != nil {
			return err
		}
	}

	return c.fsm.Transition(protocol.Completing)
}

func (c *SenderCoordinator) sendChunkWithRetry(ctx context.Context, transport Transport, chunk chunker.Chunk, readAck func() (protocol.MessageType, []byte, error)) error {
	attempts := 0
	for {
		msg, err := c.encodeChunk(chunk)
		if err != nil {
			return err
		}

		if c.pipeline.Limiter != nil {
			c.pipeline.Limiter.Acquire(float64(msg.Header.PayloadLength))
		}

		if err := protocol.WriteFrame(transport, protocol.MsgChunkData, msg.Encode()); err != nil {
			return err
		}

		msgType, payload, err := readAck()
		if err != nil {
			return err
		}
		switch msgType {
		case protocol.MsgChunkAck:
			if c.Metrics != nil {
				c.Metrics.RecordChunkSent(len(msg.Payload))
			}
			if c.OnChunkSent != nil {
				c.OnChunkSent(chunk.Header.ChunkIndex)
			}
			return nil
		case protocol.MsgChunkNack:
			nack, err := protocol.DecodeChunkNack(payload)
			if err != nil {
				return err
			}
			attempts++
			if c.Metrics != nil {
				c.Metrics.RecordChunkRetransmit(nack.Reason)
			}
			zlog().Warn().
				Uint64("chunk_index", chunk.Header.ChunkIndex).
				Str("reason", nack.Reason).
				Int("attempt", attempts).
				Msg("chunk nacked, retrying")
			if attempts > c.retryBudget {
				return ftserrors.New(ftserrors.KindChunkChecksumError, "chunk retry budget exceeded")
			}
		default:
			return ftserrors.New(ftserrors.KindProtocolError, "unexpected reply to chunk data")
		}
	}
}

func chunkCRC(payload []byte) uint32 {
	return checksum.CRC32(payload)
}

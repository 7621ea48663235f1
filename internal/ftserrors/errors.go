// Package ftserrors defines the typed error taxonomy shared by every
// component of the transfer core. Every exported failure path returns
// a *Error so callers can branch on Kind without parsing strings.
package ftserrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the groups the protocol state
// machine and callers reason about.
type Kind int

const (
	KindUnknown Kind = iota

	// Configuration
	KindInvalidChunkSize
	KindInvalidConfiguration
	KindInvalidFilePath

	// Lifecycle
	KindNotInitialized
	KindAlreadyInitialized

	// Transport
	KindConnectionFailed
	KindConnectionLost
	KindTransferTimeout
	KindProtocolError
	KindProtocolVersionMismatch

	// I/O & filesystem
	KindFileNotFound
	KindFileAccessDenied
	KindFileWriteError
	KindFileTooLarge

	// Integrity
	KindChunkChecksumError
	KindInvalidChunkIndex
	KindMissingChunks
	KindFileHashMismatch

	// Compression/Encryption
	KindCompressionFailure
	KindDecompressionFailure
	KindEncryptionFailure
	KindDecryptionFailure
	KindKeyDerivationFailure

	// Quota/Policy
	KindQuotaExceeded
	KindFileLocked
	KindPolicyDenied

	// Internal
	KindInternalError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidChunkSize:
		return "InvalidChunkSize"
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindInvalidFilePath:
		return "InvalidFilePath"
	case KindNotInitialized:
		return "NotInitialized"
	case KindAlreadyInitialized:
		return "AlreadyInitialized"
	case KindConnectionFailed:
		return "ConnectionFailed"
	case KindConnectionLost:
		return "ConnectionLost"
	case KindTransferTimeout:
		return "TransferTimeout"
	case KindProtocolError:
		return "ProtocolError"
	case KindProtocolVersionMismatch:
		return "ProtocolVersionMismatch"
	case KindFileNotFound:
		return "FileNotFound"
	case KindFileAccessDenied:
		return "FileAccessDenied"
	case KindFileWriteError:
		return "FileWriteError"
	case KindFileTooLarge:
		return "FileTooLarge"
	case KindChunkChecksumError:
		return "ChunkChecksumError"
	case KindInvalidChunkIndex:
		return "InvalidChunkIndex"
	case KindMissingChunks:
		return "MissingChunks"
	case KindFileHashMismatch:
		return "FileHashMismatch"
	case KindCompressionFailure:
		return "CompressionFailure"
	case KindDecompressionFailure:
		return "DecompressionFailure"
	case KindEncryptionFailure:
		return "EncryptionFailure"
	case KindDecryptionFailure:
		return "DecryptionFailure"
	case KindKeyDerivationFailure:
		return "KeyDerivationFailure"
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindFileLocked:
		return "FileLocked"
	case KindPolicyDenied:
		return "PolicyDenied"
	case KindInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Error is the single typed error every public operation in the core
// returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, ftserrors.New(ftserrors.KindMissingChunks, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error carrying cause as the underlying error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

package protocol

// Capabilities is the 32-bit bitmap CONNECT advertises and
// CONNECT_ACK intersects against the server's own support (spec
// §4.8; bit positions confirmed against the retrieval pack's original
// protocol_types.h).
type Capabilities uint32

const (
	CapCompression   Capabilities = 1 << 0
	CapResume        Capabilities = 1 << 1
	CapBatchTransfer Capabilities = 1 << 2
	CapQUICSupport   Capabilities = 1 << 3
	CapAutoReconnect Capabilities = 1 << 4
	CapEncryption    Capabilities = 1 << 5
)

func (c Capabilities) Has(bit Capabilities) bool { return c&bit != 0 }

// Intersect returns the capabilities both sides support.
func (c Capabilities) Intersect(other Capabilities) Capabilities { return c & other }

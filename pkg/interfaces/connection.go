package interfaces

// ConnectionState is the lifecycle of a transport connection. It only moves
// from Open to Closed or Error and never returns to Open.
type ConnectionState int

const (
	ConnectionOpen ConnectionState = iota
	ConnectionClosed
	ConnectionError
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionOpen:
		return "OPEN"
	case ConnectionClosed:
		return "CLOSED"
	case ConnectionError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Connection is a bidirectional channel of framed byte packets.
// ARCHITECTURAL DISCOVERY: Pure abstraction over the transport so TCP,
// WebSocket and in-memory test pipes share one state machine
type Connection interface {
	// ID is unique per accepted connection.
	ID() string

	// Name describes the remote end for logs.
	Name() string

	// State reports OPEN, CLOSED or ERROR.
	State() ConnectionState

	// IsOpen is shorthand for State() == ConnectionOpen.
	IsOpen() bool

	// ReceiveNextPacket blocks per the transport's semantics and returns one
	// frame with the end marker stripped.
	ReceiveNextPacket() ([]byte, error)

	// SendPacket writes one encoded frame.
	SendPacket(packet []byte) error

	// PollWillBlock is a non-blocking hint that no complete frame is ready.
	PollWillBlock() (bool, error)

	// Close moves an open connection to CLOSED and releases the transport.
	Close() error
}

// ConnectionListener receives connections produced by an acceptor.
type ConnectionListener func(conn Connection)

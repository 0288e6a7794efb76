package gossip

import (
	"sync"

	"github.com/gorilla/websocket"
)

// EventKind labels the single channel of occurrences a Mesh reports back to
// its owner (normally the node's event loop).
type EventKind int

const (
	// EventMessage carries one raw frame from a socket, not yet decoded or
	// verified.
	EventMessage EventKind = iota
	// EventClosed reports that a socket's connection ended, for any reason.
	EventClosed
	// EventWatchdog fires when a reconnect-check timer matures; the loop is
	// expected to call Mesh.AnyOpen and act on the result.
	EventWatchdog
)

// Event is one item off Mesh.Events(). Socket and Raw are only meaningful
// for EventMessage and EventClosed.
type Event struct {
	Kind   EventKind
	Socket *Socket
	Raw    []byte
}

// Socket wraps one peer connection. It carries no reference back to the Mesh
// or the node that owns it — only the minimum state needed to read, write,
// and identify the remote end — so the mesh's socket list is the only place
// that can enumerate peers, and closing a socket can never cascade through
// shared pointers.
type Socket struct {
	conn *websocket.Conn

	mu       sync.Mutex
	identity string // peer's public key hex, bound on first verified envelope
	outbound bool    // true if this node dialed out to the peer
	closed   bool
}

func newSocket(conn *websocket.Conn, outbound bool) *Socket {
	return &Socket{conn: conn, outbound: outbound}
}

// Identity returns the peer's public key hex, or "" if no envelope has been
// verified on this socket yet.
func (s *Socket) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// BindIdentity records key as this socket's identity the first time it is
// seen; later envelopes from a different key on the same socket are not
// re-bound, since a connection belongs to exactly one peer for its life.
// The owning node's loop calls this once it has verified an inbound
// envelope's signature, per spec.md §4.4 step 4.
func (s *Socket) BindIdentity(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == "" {
		s.identity = key
	}
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Socket) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.closed
	s.closed = true
	return already
}

// send writes one frame. It is safe to call from any goroutine; gorilla's
// websocket.Conn permits at most one concurrent writer, which this mutex
// enforces.
func (s *Socket) send(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *Socket) close() error {
	if s.markClosed() {
		return nil
	}
	return s.conn.Close()
}

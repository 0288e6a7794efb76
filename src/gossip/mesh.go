package gossip

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Mesh is the transport half of C5: it owns the socket list, accepts
// inbound connections, dials the seed peers, and turns socket activity into
// Events for the owning node's single event loop to act on. Mesh itself
// never verifies, dedups, or dispatches an envelope — that is state the
// node's loop owns exclusively (see src/node); Mesh only ever touches the
// socket list, which accept/dial goroutines and the loop both reach, so
// that one piece of state keeps its own lock.
type Mesh struct {
	logger *logrus.Entry

	mu      sync.Mutex
	sockets []*Socket

	events chan Event

	watchdogOnce time.Duration
	watchdogRest time.Duration
}

// NewMesh returns a Mesh ready to Listen and Dial. The reconnect-check
// delays are fixed by spec.md §4.4 at 10s after the first dial and 5s on
// every subsequent socket close.
func NewMesh(logger *logrus.Entry) *Mesh {
	if logger == nil {
		l := logrus.New()
		logger = logrus.NewEntry(l)
	}
	return &Mesh{
		logger:       logger,
		events:       make(chan Event, 256),
		watchdogOnce: 10 * time.Second,
		watchdogRest: 5 * time.Second,
	}
}

// Events is the single channel the owning node loop selects on for socket
// activity: new frames, closures, and watchdog maturities.
func (m *Mesh) Events() <-chan Event {
	return m.events
}

// Listen starts accepting inbound websocket connections on addr (":port").
// Each accepted connection is added to the socket list and read from in its
// own goroutine.
func (m *Mesh) Listen(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.logger.WithField("error", err).Warn("upgrading inbound connection")
			return
		}
		m.adopt(conn, false)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	go func() {
		if err := http.Serve(ln, mux); err != nil {
			m.logger.WithField("error", err).Warn("gossip listener stopped")
		}
	}()

	return nil
}

// Dial connects out to a seed peer's websocket URL ("ws://host:port"). A
// failed dial is logged and otherwise has no effect, per spec.md §7 ("Peer
// unreachable on dial: log and continue") — the reconnect watchdog is what
// eventually notices nobody is reachable.
func (m *Mesh) Dial(url string) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		m.logger.WithFields(logrus.Fields{"url": url, "error": err}).Warn("dialing peer")
		m.scheduleWatchdog(m.watchdogOnce)
		return
	}
	m.adopt(conn, true)
}

func (m *Mesh) adopt(conn *websocket.Conn, outbound bool) {
	s := newSocket(conn, outbound)

	m.mu.Lock()
	m.sockets = append(m.sockets, s)
	m.mu.Unlock()

	go m.readLoop(s)
	m.scheduleWatchdog(m.watchdogOnce)
}

func (m *Mesh) readLoop(s *Socket) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			m.dropSocket(s)
			return
		}
		m.events <- Event{Kind: EventMessage, Socket: s, Raw: raw}
	}
}

func (m *Mesh) dropSocket(s *Socket) {
	_ = s.close()
	m.events <- Event{Kind: EventClosed, Socket: s}
	m.scheduleWatchdog(m.watchdogRest)
}

// scheduleWatchdog arms a one-shot timer that, on firing, posts an
// EventWatchdog for the loop to check AnyOpen against. A check already in
// flight is not suppressed: redundant EventWatchdog entries are harmless,
// since AnyOpen is idempotent and exiting the process is idempotent too.
func (m *Mesh) scheduleWatchdog(after time.Duration) {
	time.AfterFunc(after, func() {
		m.events <- Event{Kind: EventWatchdog}
	})
}

// Broadcast sends env to every open socket except skip (nil to send to all),
// the flood-fill forwarding step of C5. Sockets not in an open state are
// silently skipped; there is no outbound backpressure beyond that.
func (m *Mesh) Broadcast(env *Envelope, skip *Socket) error {
	raw, err := Encode(env)
	if err != nil {
		return err
	}

	for _, s := range m.snapshot() {
		if s == skip || s.isClosed() {
			continue
		}
		if err := s.send(raw); err != nil {
			m.logger.WithField("error", err).Debug("broadcast send failed, dropping")
		}
	}
	return nil
}

// SendTo delivers env to the single socket bound to identity key, used for
// CHAIN responses addressed back to one requester via the envelope's "for"
// field. It is a no-op if no open socket is bound to that key.
func (m *Mesh) SendTo(key string, env *Envelope) error {
	raw, err := Encode(env)
	if err != nil {
		return err
	}
	for _, s := range m.snapshot() {
		if s.isClosed() || s.Identity() != key {
			continue
		}
		return s.send(raw)
	}
	return nil
}

// CloseIdentity closes the open socket bound to key, if any. This is how
// the vote timeout punishes a non-voter at the transport level (spec.md
// §4.6): closing, not removing from any set, since closing triggers the
// ordinary EventClosed -> ValidatorSet.Reset() path.
func (m *Mesh) CloseIdentity(key string) {
	for _, s := range m.snapshot() {
		if !s.isClosed() && s.Identity() == key {
			_ = s.close()
		}
	}
}

// AnyOpen reports whether at least one socket is currently open, the
// condition the reconnect watchdog checks before giving up.
func (m *Mesh) AnyOpen() bool {
	for _, s := range m.snapshot() {
		if !s.isClosed() {
			return true
		}
	}
	return false
}

func (m *Mesh) snapshot() []*Socket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Socket, len(m.sockets))
	copy(out, m.sockets)
	return out
}

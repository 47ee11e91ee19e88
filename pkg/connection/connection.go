// Package connection implements the ConnectionManager plugin model from
// spec §4.C: each manager owns a transport (TCP, UDP) and turns raw bytes
// into delayed callbacks on the attached EventLoop rather than blocking
// it. Socket I/O itself is plain net.Conn/net.Listener — no pack example
// wraps raw TCP/UDP sockets in a third-party client, so this is one of
// the few components built straight on the standard library (documented
// in DESIGN.md).
package connection

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/eventloop"
	"golang.org/x/time/rate"
)

// ConnectionID identifies one accepted/dialed connection within a
// ConnectionManager.
type ConnectionID uint64

// RecvCallback is invoked (via EventLoop.AddDelayed) with bytes received
// on a connection, or err != nil if the connection failed/closed.
type RecvCallback func(id ConnectionID, data []byte, err error)

// Manager is the ConnectionManager contract: open/close connections,
// send bytes, and deliver received bytes as delayed loop callbacks.
type Manager interface {
	eventloop.EventSource
	// Listen starts accepting inbound connections on addr.
	Listen(addr string, onAccept RecvCallback) error
	// Connect dials addr, returning the new connection's id.
	Connect(ctx context.Context, addr string) (ConnectionID, error)
	// Send writes data on the given connection.
	Send(id ConnectionID, data []byte) error
	// Close closes one connection.
	Close(id ConnectionID)
}

// TCPManager is the ConnectionManager used for the OPC UA TCP binary
// transport (spec §4.D's SecureChannel sits directly on top of this).
type TCPManager struct {
	loop *eventloop.EventLoop
	recv RecvCallback

	acceptLimiter *rate.Limiter

	mu       sync.Mutex
	state    eventloop.SourceState
	listener net.Listener
	conns    map[ConnectionID]net.Conn
	nextID   ConnectionID
}

// NewTCPManager creates a TCP ConnectionManager bound to loop. Received
// bytes and connection errors are delivered to loop via AddDelayed so
// the loop's cooperative scheduling invariant is preserved.
func NewTCPManager(loop *eventloop.EventLoop) *TCPManager {
	return &TCPManager{
		loop:  loop,
		state: eventloop.SourceStopped,
		conns: make(map[ConnectionID]net.Conn),
	}
}

// SetAcceptRateLimit throttles how fast Listen hands new inbound
// connections to readLoop, bounding the rate at which a client can
// force new SecureChannel setups. A nil limiter (the default) disables
// throttling.
func (m *TCPManager) SetAcceptRateLimit(r rate.Limit, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptLimiter = rate.NewLimiter(r, burst)
}

func (m *TCPManager) Name() string                  { return "tcp" }
func (m *TCPManager) State() eventloop.SourceState  { return m.state }

func (m *TCPManager) Start() error {
	m.state = eventloop.SourceStarted
	return nil
}

func (m *TCPManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = eventloop.SourceStopping
	if m.listener != nil {
		_ = m.listener.Close()
	}
	for id, c := range m.conns {
		_ = c.Close()
		delete(m.conns, id)
	}
	m.state = eventloop.SourceStopped
}

// Listen accepts connections on addr in a background goroutine; each
// accepted connection gets its own read loop goroutine, and both only
// ever touch the EventLoop through AddDelayed.
func (m *TCPManager) Listen(addr string, onAccept RecvCallback) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	m.mu.Lock()
	m.listener = ln
	m.recv = onAccept
	m.mu.Unlock()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			m.mu.Lock()
			limiter := m.acceptLimiter
			m.mu.Unlock()
			if limiter != nil && !limiter.Allow() {
				_ = conn.Close()
				continue
			}
			id := m.register(conn)
			go m.readLoop(id, conn)
		}
	}()
	return nil
}

func (m *TCPManager) Connect(ctx context.Context, addr string) (ConnectionID, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", addr, err)
	}
	id := m.register(conn)
	go m.readLoop(id, conn)
	return id, nil
}

func (m *TCPManager) register(conn net.Conn) ConnectionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.conns[id] = conn
	return id
}

func (m *TCPManager) readLoop(id ConnectionID, conn net.Conn) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			m.deliver(id, chunk, nil)
		}
		if err != nil {
			m.deliver(id, nil, err)
			m.mu.Lock()
			delete(m.conns, id)
			m.mu.Unlock()
			return
		}
	}
}

func (m *TCPManager) deliver(id ConnectionID, data []byte, err error) {
	m.mu.Lock()
	cb := m.recv
	m.mu.Unlock()
	if cb == nil {
		return
	}
	m.loop.AddDelayed(func(time.Time) { cb(id, data, err) })
}

func (m *TCPManager) Send(id ConnectionID, data []byte) error {
	m.mu.Lock()
	conn, ok := m.conns[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("connection %d not found", id)
	}
	_, err := conn.Write(data)
	return err
}

func (m *TCPManager) Close(id ConnectionID) {
	m.mu.Lock()
	conn, ok := m.conns[id]
	delete(m.conns, id)
	m.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

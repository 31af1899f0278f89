package core

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

// ErrNotAdvertisableAddress reports that bindAddr resolved to an
// address that can't be advertised to peers (e.g. 0.0.0.0) and no
// explicit advertise address was supplied.
var ErrNotAdvertisableAddress = errors.New("fle: local bind address is not advertisable")

const connHandshakeSize = 8 // sender ServerID, sent once per dialed connection

// TCPTransport is the concrete types.Transport used by cmd/fled: a
// pool of up to maxPool net.Conns per peer, each frame written behind
// a 4-byte big-endian length prefix.
type TCPTransport struct {
	self          types.ServerID
	advertiseAddr *net.TCPAddr
	peers         map[types.ServerID]string
	maxPool       int
	timeout       time.Duration
	logger        types.Logger

	listener net.Listener

	mu   sync.Mutex
	pool map[types.ServerID][]net.Conn

	inbound  chan types.RawFrame
	inFlight int32

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewTCPTransport binds bindAddr, resolving the advertised address
// from advertise or, if nil, from the bound listener itself, which
// fails for a wildcard bind (ErrNotAdvertisableAddress).
func NewTCPTransport(bindAddr string, advertise *net.TCPAddr, self types.ServerID, peers map[types.ServerID]string, maxPool int, timeout time.Duration, logger types.Logger) (*TCPTransport, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	advertiseAddr := advertise
	if advertiseAddr == nil {
		addr, ok := listener.Addr().(*net.TCPAddr)
		if !ok || addr.IP.IsUnspecified() {
			listener.Close()
			return nil, ErrNotAdvertisableAddress
		}
		advertiseAddr = addr
	}

	if maxPool <= 0 {
		maxPool = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	t := &TCPTransport{
		self:          self,
		advertiseAddr: advertiseAddr,
		peers:         peers,
		maxPool:       maxPool,
		timeout:       timeout,
		logger:        logger,
		listener:      listener,
		pool:          make(map[types.ServerID][]net.Conn),
		inbound:       make(chan types.RawFrame, 256),
		shutdownCh:    make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

// LocalAddress reports the address peers should dial to reach us.
func (t *TCPTransport) LocalAddress() string {
	return t.advertiseAddr.String()
}

func (t *TCPTransport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				t.logger.Warnf("fle: accept failed: %v", err)
				return
			}
		}
		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	header := make([]byte, connHandshakeSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	sender := types.ServerID(binary.BigEndian.Uint64(header))

	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(lenBuf)
		frame := make([]byte, n)
		if _, err := io.ReadFull(conn, frame); err != nil {
			return
		}

		select {
		case t.inbound <- types.RawFrame{Sender: sender, Frame: frame}:
		default:
			t.logger.Warnf("fle: inbound queue full, dropping frame from %d", sender)
		}
	}
}

// dial opens and handshakes a fresh connection to sid, without
// touching the pool.
func (t *TCPTransport) dial(sid types.ServerID) (net.Conn, error) {
	addr, ok := t.peers[sid]
	if !ok {
		return nil, errors.New("fle: unknown peer")
	}
	conn, err := net.DialTimeout("tcp", addr, t.timeout)
	if err != nil {
		return nil, err
	}
	header := make([]byte, connHandshakeSize)
	binary.BigEndian.PutUint64(header, uint64(t.self))
	if _, err := conn.Write(header); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (t *TCPTransport) getConn(sid types.ServerID) (net.Conn, error) {
	t.mu.Lock()
	if conns := t.pool[sid]; len(conns) > 0 {
		conn := conns[len(conns)-1]
		t.pool[sid] = conns[:len(conns)-1]
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()
	return t.dial(sid)
}

func (t *TCPTransport) returnConn(sid types.ServerID, conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pool[sid]) >= t.maxPool {
		conn.Close()
		return
	}
	t.pool[sid] = append(t.pool[sid], conn)
}

// SendTo implements types.Transport: best-effort, pooled delivery with
// a single retry against a fresh connection on write failure. A frame
// addressed to the local sid is dropped.
func (t *TCPTransport) SendTo(sid types.ServerID, frame []byte) error {
	if sid == t.self {
		return nil
	}
	atomic.AddInt32(&t.inFlight, 1)
	defer atomic.AddInt32(&t.inFlight, -1)

	conn, err := t.getConn(sid)
	if err != nil {
		return err
	}

	if err := t.writeFrame(conn, frame); err != nil {
		conn.Close()
		conn, err = t.dial(sid)
		if err != nil {
			return err
		}
		if err := t.writeFrame(conn, frame); err != nil {
			conn.Close()
			return err
		}
	}

	t.returnConn(sid, conn)
	return nil
}

func (t *TCPTransport) writeFrame(conn net.Conn, frame []byte) error {
	conn.SetWriteDeadline(time.Now().Add(t.timeout))
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(frame)))
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}
	_, err := conn.Write(frame)
	return err
}

// PollRecv implements types.Transport.
func (t *TCPTransport) PollRecv(timeout time.Duration) (types.RawFrame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case raw := <-t.inbound:
		return raw, true
	case <-timer.C:
		return types.RawFrame{}, false
	}
}

// HaveDelivered implements types.Transport: true once every in-flight
// SendTo call has returned.
func (t *TCPTransport) HaveDelivered() bool {
	return atomic.LoadInt32(&t.inFlight) == 0
}

// ConnectAll eagerly dials every known peer, populating the pool.
// Failures are logged and otherwise ignored: SendTo retries lazily.
func (t *TCPTransport) ConnectAll() {
	for sid := range t.peers {
		conn, err := t.dial(sid)
		if err != nil {
			t.logger.Warnf("fle: connect to %d failed: %v", sid, err)
			continue
		}
		t.returnConn(sid, conn)
	}
}

// Halt implements types.Transport. Idempotent.
func (t *TCPTransport) Halt() {
	t.shutdownOnce.Do(func() {
		close(t.shutdownCh)
		t.listener.Close()

		t.mu.Lock()
		for _, conns := range t.pool {
			for _, conn := range conns {
				conn.Close()
			}
		}
		t.pool = nil
		t.mu.Unlock()
	})
	t.wg.Wait()
}

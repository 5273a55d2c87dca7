package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Handler is invoked for every RTP packet the Session receives. addr is
// the sender's network address.
type Handler func(pkt *rtp.Packet, addr net.Addr)

// receiveBufferDefault is the default size of the Session's temporary
// receive buffer. Per SPEC_FULL §9 (resource sizing), this is a
// constructor parameter rather than a fixed source constant.
const receiveBufferDefault = 5000

// Session is one RTP channel's UDP transport: a bound local socket,
// asynchronous receive dispatch to a Handler, and packet send. It is
// modeled on the teacher corpus's UDPTransport (net.PacketConn,
// context-cancel shutdown, timeout-based read loop), adapted from the
// Tox-specific `[type byte][data]` packet framing to RTP marshal/unmarshal
// via github.com/pion/rtp.
type Session struct {
	conn        net.PacketConn
	localAddr   net.Addr
	mu          sync.RWMutex
	handler     Handler
	ctx         context.Context
	cancel      context.CancelFunc
	recvBufSize int
	log         *logrus.Entry
	remoteAddr  net.Addr
	wg          sync.WaitGroup
}

// NewSession binds a UDP socket on listenAddr (e.g. ":0" for an ephemeral
// port) and starts its receive-dispatch loop. Construction failure here is
// the Fatal error kind from spec §7: it is returned to the caller rather
// than silently absorbed.
func NewSession(listenAddr string) (*Session, error) {
	return NewSessionWithBufferSize(listenAddr, receiveBufferDefault)
}

// NewSessionWithBufferSize is NewSession with an explicit receive buffer
// size, for callers that need a non-default bound.
func NewSessionWithBufferSize(listenAddr string, bufSize int) (*Session, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:        conn,
		localAddr:   conn.LocalAddr(),
		ctx:         ctx,
		cancel:      cancel,
		recvBufSize: bufSize,
		log:         logrus.WithField("package", "transport"),
	}
	s.wg.Add(1)
	go s.receiveLoop()
	return s, nil
}

// LocalAddr returns the bound local address, including the OS-assigned
// port when listenAddr requested an ephemeral one.
func (s *Session) LocalAddr() net.Addr { return s.localAddr }

// LocalPort returns the bound local UDP port.
func (s *Session) LocalPort() int {
	if ua, ok := s.localAddr.(*net.UDPAddr); ok {
		return ua.Port
	}
	return 0
}

// SetHandler registers the callback invoked for every received packet.
func (s *Session) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetRemote records the peer address packets are sent to. It does not
// itself change any RTP channel state; the channel is responsible for its
// own peered/active transition.
func (s *Session) SetRemote(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteAddr = addr
}

// Remote returns the currently configured peer address, or nil if unset.
func (s *Session) Remote() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteAddr
}

// Send marshals pkt and writes it to the configured remote address.
func (s *Session) Send(pkt *rtp.Packet) error {
	remote := s.Remote()
	if remote == nil {
		return errPeerUnset
	}
	data, err := pkt.Marshal()
	if err != nil {
		return err
	}
	_, err = s.conn.WriteTo(data, remote)
	return err
}

// Close shuts down the receive loop and the underlying socket.
func (s *Session) Close() error {
	s.cancel()
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

func (s *Session) receiveLoop() {
	defer s.wg.Done()
	buf := make([]byte, s.recvBufSize)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}

		pkt := &rtp.Packet{}
		if uerr := pkt.Unmarshal(buf[:n]); uerr != nil {
			s.log.WithError(uerr).Debug("dropped unparseable packet")
			continue
		}

		s.mu.RLock()
		h := s.handler
		s.mu.RUnlock()
		if h != nil {
			// Dispatched synchronously, in the same goroutine as ReadFrom,
			// so packets reach the handler in arrival order (spec §5):
			// reassembly (rtpchannel/channel.go) and the DTMF FIFO both
			// depend on that ordering being preserved.
			h(pkt, addr)
		}
	}
}

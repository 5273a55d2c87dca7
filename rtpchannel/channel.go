package rtpchannel

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/pgrabowski/mediactrl-sub001/codec"
	"github.com/pgrabowski/mediactrl-sub001/frame"
	"github.com/pgrabowski/mediactrl-sub001/transport"
)

// MaxReassemblyFragments caps the pending-reassembly queue (spec §7,
// ReassemblyOverflow). Chosen as a generous multiple of typical
// video-frame fragmentation counts while bounding memory under a stuck
// marker bit.
const MaxReassemblyFragments = 64

// audioPeriodMicros is the default outgoing packetization period for audio
// streams (20ms), used by the tempification algorithm (spec §4.3.3).
const audioPeriodMicros = 20_000

// unsetPayloadType marks a channel that has never had a payload type
// attached; the first SetPayloadType call always attaches a codec, per
// testable property 3 (idempotent payload-type set).
const unsetPayloadType = -1

// Subscriber receives the RTP-events a Channel emits. A Transaction (the
// SIP-facing media holder) is the single subscriber for every Channel it
// owns, per spec §4.5.
type Subscriber interface {
	PayloadTypeChanged(ch *Channel, pt int)
	IncomingFrame(ch *Channel, f *frame.Frame)
	IncomingDTMF(ch *Channel, tone int)
	FrameSent(ch *Channel, f *frame.Frame)
	ChannelLocked(ch *Channel)
	ChannelUnlocked(ch *Channel)
	ChannelClosed(label string)
}

// Channel is one bidirectional RTP media stream: local/remote addressing,
// an attached Codec, marker-bit reassembly, tempification, the
// lock-via-data-frame protocol, and the DTMF FIFO (spec §4.3).
//
// The original implementation drives its receive path with a dedicated
// send thread that blocks on the transport's scheduled-receive API (spec
// §4.3.4). This port's transport.Session already dispatches every received
// packet asynchronously to a callback (justified in DESIGN.md under the
// transport package, per spec §5's explicit allowance for either model).
// There is therefore nothing left for a per-channel thread to block on:
// Channel has no goroutine of its own. The active/idle distinction from
// the state machine is retained as pure bookkeeping (WakeUp/State), since
// §4.3.3's sendFrame rejection conditions never test it — it exists for
// the Endpoint Hierarchy's reference-counted wake/sleep semantics (spec
// §4.4), not to gate media flow here.
type Channel struct {
	mu sync.Mutex

	label         string
	media         frame.Kind
	direction     Direction
	flags         frame.Flags
	transactionID string

	currentPT int
	clockRate int
	period    int64 // outgoing packetization period, microseconds

	codec    codec.Codec
	registry *codec.Registry

	collector *frame.Collector
	session   *transport.Session

	subscriber Subscriber

	ssrc         uint32
	seq          uint16
	num          uint32
	lastSendMs   int64
	firstSend    bool
	timeProvider frame.TimeProvider

	jitter *JitterBuffer

	locked    bool
	lockOwner frame.OwnerID

	pending [][]byte

	dtmf []int

	state  State
	alive  bool
	active bool

	log *logrus.Entry
}

// NewChannel creates a Channel bound to a fresh local UDP socket
// (listenAddr, e.g. "0.0.0.0:0"), attaches a codec for the initial payload
// type via registry, and registers with collector for Frame reclamation.
// Session construction failure is the Fatal error kind (spec §7): it is
// returned to the caller rather than absorbed.
func NewChannel(listenAddr string, media frame.Kind, initialPT int, registry *codec.Registry, collector *frame.Collector) (*Channel, error) {
	return NewChannelWithProviders(listenAddr, media, initialPT, registry, collector, frame.DefaultTimeProvider{}, DefaultSSRCProvider{})
}

// NewChannelWithProviders is NewChannel with injectable time/SSRC sources,
// for deterministic tests of tempification (testable properties 7 and 8).
func NewChannelWithProviders(listenAddr string, media frame.Kind, initialPT int, registry *codec.Registry, collector *frame.Collector, tp frame.TimeProvider, ssrcProvider SSRCProvider) (*Channel, error) {
	session, err := transport.NewSession(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}
	ssrc, err := ssrcProvider.GenerateSSRC()
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}

	label := strings.ReplaceAll(uuid.New().String(), "-", "")
	c := &Channel{
		label:        label,
		media:        media,
		direction:    DirectionSendRecv,
		currentPT:    unsetPayloadType,
		clockRate:    8000,
		period:       audioPeriodMicros,
		registry:     registry,
		collector:    collector,
		session:      session,
		timeProvider: tp,
		firstSend:    true,
		state:        StateUnbound,
		alive:        true,
		log:          logrus.WithFields(logrus.Fields{"package": "rtpchannel", "label": label}),
	}
	c.jitter = NewJitterBuffer(JitterTargetDefault, c.clockRate, tp)
	session.SetHandler(c.handleTransportPacket)

	if initialPT != unsetPayloadType {
		if err := c.SetPayloadType(initialPT); err != nil {
			c.log.WithError(err).Warn("initial payload type attach failed")
		}
	}
	c.log.Info("rtp channel created")
	return c, nil
}

// Label returns the channel's SDP label (32 hex digits, 128 bits of
// entropy), assigned once at construction.
func (c *Channel) Label() string { return c.label }

// LocalPort returns the bound local UDP port, assigned once at creation
// and never changed.
func (c *Channel) LocalPort() int { return c.session.LocalPort() }

// LocalAddr returns the bound local transport address.
func (c *Channel) LocalAddr() net.Addr { return c.session.LocalAddr() }

// Media returns the channel's media kind.
func (c *Channel) Media() frame.Kind { return c.media }

// State returns the channel's current state-machine position.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetSubscriber registers the RTP-events subscriber for this channel.
func (c *Channel) SetSubscriber(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriber = s
}

// SetDirection sets the negotiated SDP media direction.
func (c *Channel) SetDirection(d Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.direction = d
}

// Direction returns the negotiated SDP media direction.
func (c *Channel) Direction() Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

// SetTransactionID records the SIP dialog correlation string stamped onto
// Frames this channel assembles on receive.
func (c *Channel) SetTransactionID(tid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactionID = tid
}

// SetPeer sets the remote address. The first call transitions the channel
// from unbound to peered, per spec §4.3.1; subsequent calls (e.g. a
// re-INVITE updating the peer) just update the address.
func (c *Channel) SetPeer(addr net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.SetRemote(addr)
	if c.state == StateUnbound {
		c.state = StatePeered
		c.log.WithField("remote", addr.String()).Info("channel peered")
	}
}

// WakeUp transitions the channel between active and idle, per spec
// §4.3.1. It never gates sendFrame or the receive path — see the Channel
// doc comment.
func (c *Channel) WakeUp(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.active = true
		if c.state == StatePeered || c.state == StateIdle {
			c.state = StateActive
		}
		return
	}
	c.active = false
	if c.state == StateActive {
		c.state = StateIdle
	}
}

// SetPayloadType records pt as the channel's payload type and, if no codec
// is attached yet, attaches the codec bound to pt. An already attached
// codec is kept when pt changes. Setting the same payload type twice when a
// codec is already attached is a no-op, per testable property 3.
func (c *Channel) SetPayloadType(pt int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentPT == pt && c.codec != nil {
		return nil
	}
	c.currentPT = pt
	if c.codec == nil {
		inst, err := c.registry.Create(pt)
		if err != nil {
			return fmt.Errorf("rtpchannel: attach codec for pt %d: %w", pt, err)
		}
		inst.SetCollector(c.collector)
		c.codec = inst
		c.clockRate = inst.ClockRate()
		c.jitter = NewJitterBuffer(JitterTargetDefault, c.clockRate, c.timeProvider)
	}
	return nil
}

// PayloadType returns the channel's current RTP payload type.
func (c *Channel) PayloadType() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPT
}

// AddSetting parses an SDP fmtp value string (tokens separated by ';' or
// ' ') and returns the reconstructed reply string, per spec §6 and the
// supplemented ordering rule in SPEC_FULL §4.6: recognized tokens are
// replaced by their canonical reply fragment, unrecognized tokens are
// preserved verbatim in their original position, and the whole reply is
// joined with ';' regardless of the input's separator.
func (c *Channel) AddSetting(value string) string {
	tokens := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ' ' })
	reply := make([]string, 0, len(tokens))

	c.mu.Lock()
	for _, tok := range tokens {
		switch {
		case strings.EqualFold(tok, "QCIF"):
			c.flags |= frame.FlagQCIF
			reply = append(reply, "QCIF=2")
		case strings.EqualFold(tok, "CIF"):
			c.flags |= frame.FlagCIF
			reply = append(reply, "CIF=2")
		default:
			reply = append(reply, tok)
		}
	}
	c.mu.Unlock()
	return strings.Join(reply, ";")
}

// NextDTMF pops the oldest queued DTMF tone, FIFO, per testable property 5.
func (c *Channel) NextDTMF() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.dtmf) == 0 {
		return 0, false
	}
	tone := c.dtmf[0]
	c.dtmf = c.dtmf[1:]
	return tone, true
}

// SendFrame transmits f, subject to the rejection conditions of spec
// §4.3.3: no peer set, lock violation, media mismatch, unsupported
// transcode, or no codec attached while encoding is needed. Locking and
// unlocking frames apply their side effect before transmission; they are
// still sent as ordinary data.
func (c *Channel) SendFrame(f *frame.Frame) error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return ErrPeerUnset
	}
	if c.session.Remote() == nil {
		c.mu.Unlock()
		c.log.Debug("sendFrame dropped: peer unset")
		return ErrPeerUnset
	}
	if c.locked && f.Owner != c.lockOwner {
		c.mu.Unlock()
		c.log.Debug("sendFrame dropped: lock violation")
		return ErrLockViolation
	}
	if f.Media != c.media {
		c.mu.Unlock()
		c.log.Debug("sendFrame dropped: media mismatch")
		return ErrMediaMismatch
	}
	if f.Format != frame.FormatRaw && int(f.Format) != c.currentPT {
		c.mu.Unlock()
		c.log.Debug("sendFrame dropped: transcode unsupported")
		return ErrTranscodeUnsupported
	}
	needsEncode := f.Format == frame.FormatRaw
	inst := c.codec
	if needsEncode && inst == nil {
		c.mu.Unlock()
		c.log.Debug("sendFrame dropped: codec unavailable")
		return ErrCodecUnavailable
	}

	becameLocked, becameUnlocked := false, false
	if f.IsLocking() {
		c.locked = true
		c.lockOwner = f.Owner
		becameLocked = true
	} else if f.IsUnlocking() {
		c.locked = false
		c.lockOwner = nil
		becameUnlocked = true
	}
	c.mu.Unlock()

	outFrame := f
	if needsEncode {
		outFrame = inst.Encode(f)
		if outFrame == nil {
			c.log.Warn("sendFrame dropped: encode failed")
			return ErrCodecUnavailable
		}
	}

	sub := c.getSubscriber()
	if becameLocked && sub != nil {
		sub.ChannelLocked(c)
	}
	if becameUnlocked && sub != nil {
		sub.ChannelUnlocked(c)
	}

	if err := c.transmit(outFrame); err != nil {
		return err
	}

	if sub != nil {
		sub.FrameSent(c, f)
	}
	return nil
}

func (c *Channel) getSubscriber() Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriber
}

// transmit packetizes f (and its appended fragments, if any) under one RTP
// timestamp and sends each packet in order, per spec §4.3.3.
func (c *Channel) transmit(f *frame.Frame) error {
	pieces := make([]*frame.Frame, 0, 1+len(f.Appended))
	pieces = append(pieces, f)
	pieces = append(pieces, f.Appended...)

	c.mu.Lock()
	ts, burstMarker := c.nextTimestampLocked()
	pt := uint8(c.currentPT)
	ssrc := c.ssrc
	firstSeq := c.seq
	c.seq += uint16(len(pieces))
	c.mu.Unlock()

	for i, piece := range pieces {
		marker := false
		switch {
		case len(pieces) == 1:
			marker = burstMarker
		case i == len(pieces)-1:
			marker = true
		}
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         marker,
				PayloadType:    pt,
				SequenceNumber: firstSeq + uint16(i),
				Timestamp:      ts,
				SSRC:           ssrc,
			},
			Payload: piece.Buffer,
		}
		if err := c.session.Send(pkt); err != nil {
			return fmt.Errorf("rtpchannel: transmit: %w", err)
		}
	}
	return nil
}

// nextTimestampLocked implements the tempification algorithm of spec
// §4.3.3 exactly: continuous sends within 5 periods advance num by
// clockrate (testable property 7); a gap of 5 periods or more starts a new
// burst, jumps num by t*clockrate, and returns marker=true (testable
// property 8). Must be called with c.mu held.
func (c *Channel) nextTimestampLocked() (ts uint32, marker bool) {
	now := c.timeProvider.Now().UnixMilli()
	if c.firstSend {
		c.firstSend = false
		c.lastSendMs = now
		return c.num, true
	}
	t := float64(now-c.lastSendMs) * 1000 / float64(c.period)
	if t < 5 {
		c.num += uint32(c.clockRate)
		c.lastSendMs += c.period / 1000
		return c.num, false
	}
	c.num += uint32(t) * uint32(c.clockRate)
	c.lastSendMs = now
	return c.num, true
}

// handleTransportPacket is the transport.Session receive callback: it
// detects telephone events, payload-type changes, performs marker-bit
// reassembly, and decodes the assembled Frame before forwarding it to the
// subscriber (spec §4.3.2).
func (c *Channel) handleTransportPacket(pkt *rtp.Packet, _ net.Addr) {
	if transport.DefaultProfile.IsTelephoneEvent(int(pkt.PayloadType)) {
		c.handleTelephoneEvent(pkt)
		return
	}

	c.mu.Lock()
	c.jitter.Observe(pkt.Timestamp)

	var ptChanged bool
	if int(pkt.PayloadType) != c.currentPT {
		ptChanged = true
		c.currentPT = int(pkt.PayloadType)
		if c.codec == nil {
			inst, err := c.registry.Create(c.currentPT)
			if err != nil {
				c.log.WithError(err).Warn("incoming payload type change: codec creation failed")
			} else {
				inst.SetCollector(c.collector)
				c.codec = inst
				c.clockRate = inst.ClockRate()
			}
		}
	}
	newPT := c.currentPT

	buf := append([]byte(nil), pkt.Payload...)
	lastFragment := pkt.Marker
	var head *frame.Frame
	if !lastFragment {
		if len(c.pending) >= MaxReassemblyFragments {
			c.pending = nil
			c.mu.Unlock()
			c.log.Warn("reassembly overflow: dropping burst")
			return
		}
		c.pending = append(c.pending, buf)
		c.mu.Unlock()
		if ptChanged {
			c.notifyPayloadTypeChange(newPT)
		}
		return
	}

	if len(c.pending) == 0 {
		head = frame.NewBuffered(c.collector, c.media, buf, frame.Format(c.currentPT))
	} else {
		fragments := c.pending
		c.pending = nil
		head = frame.NewBuffered(c.collector, c.media, fragments[0], frame.Format(c.currentPT))
		for _, fr := range fragments[1:] {
			head.AppendFrame(frame.NewBuffered(c.collector, c.media, fr, frame.Format(c.currentPT)))
		}
		head.AppendFrame(frame.NewBuffered(c.collector, c.media, buf, frame.Format(c.currentPT)))
	}
	head.TransactionID = c.transactionID
	inst := c.codec
	sub := c.subscriber
	c.mu.Unlock()

	if ptChanged {
		c.notifyPayloadTypeChange(newPT)
	}

	if inst == nil {
		c.log.Warn("incoming frame dropped: no codec attached")
		return
	}
	decoded := inst.Decode(head)
	if decoded == nil {
		c.log.Warn("codec decode failed")
		return
	}
	decoded.Original = head
	if sub != nil {
		sub.IncomingFrame(c, decoded)
	}
}

func (c *Channel) notifyPayloadTypeChange(pt int) {
	sub := c.getSubscriber()
	if sub != nil {
		sub.PayloadTypeChanged(c, pt)
	}
}

// handleTelephoneEvent parses an RFC 4733 telephone-event payload and
// queues its tone FIFO. Per spec §4.3.2, telephone-event payload-type
// changes and the timestamp jumps they cause are absorbed here and never
// surfaced as a media payload-type change.
func (c *Channel) handleTelephoneEvent(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}
	tone := int(pkt.Payload[0])
	c.mu.Lock()
	c.dtmf = append(c.dtmf, tone)
	sub := c.subscriber
	c.mu.Unlock()
	if sub != nil {
		sub.IncomingDTMF(c, tone)
	}
}

// Close tears the channel down: notifies the subscriber of closure, closes
// the transport session, and discards the attached codec, per the
// closing -> closed transition of spec §4.3.1. There is no send thread to
// join (see the Channel doc comment).
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.alive = false
	c.active = false
	label := c.label
	sub := c.subscriber
	c.mu.Unlock()

	if sub != nil {
		sub.ChannelClosed(label)
	}
	if err := c.session.Close(); err != nil {
		c.log.WithError(err).Warn("transport session close failed")
	}

	c.mu.Lock()
	c.codec = nil
	c.state = StateClosed
	c.mu.Unlock()
	c.log.Info("rtp channel closed")
}

// Alive reports whether the channel has not yet been closed.
func (c *Channel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// JitterEstimate returns the channel's current smoothed jitter estimate.
func (c *Channel) JitterEstimate() time.Duration {
	return c.jitter.EstimateDuration()
}

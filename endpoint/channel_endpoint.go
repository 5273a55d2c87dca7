package endpoint

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pgrabowski/mediactrl-sub001/frame"
	"github.com/pgrabowski/mediactrl-sub001/rtpchannel"
	"github.com/pgrabowski/mediactrl-sub001/sip"
)

// ChannelEndpoint is the leaf of the two-level endpoint hierarchy (spec
// §4.4): it is bound 1:1 to an RTP Channel, keyed by `fromTag~toTag/label`.
// It implements sip.Subscriber, registers itself with the owning
// Transaction for its label, and on every callback forwards to (a) its
// owning TransactionEndpoint and (b) its own abstract Connection.
type ChannelEndpoint struct {
	mu sync.Mutex

	connectionID string // fromTag~toTag
	label        string
	media        frame.Kind

	channel    *rtpchannel.Channel
	owner      *TransactionEndpoint
	connection Connection

	counter uint16

	log *logrus.Entry
}

// NewChannelEndpoint wraps ch as a leaf endpoint of owner, registering
// itself as the channel's package-layer subscriber for its label.
func NewChannelEndpoint(connectionID string, ch *rtpchannel.Channel, owner *TransactionEndpoint, tr *sip.Transaction) *ChannelEndpoint {
	ce := &ChannelEndpoint{
		connectionID: connectionID,
		label:        ch.Label(),
		media:        ch.Media(),
		channel:      ch,
		owner:        owner,
		log:          logrus.WithFields(logrus.Fields{"package": "endpoint", "label": ch.Label()}),
	}
	tr.RegisterSubscriber(ch.Label(), ce)
	return ce
}

// Label returns the fromTag~toTag/label connection id suffix this endpoint
// is keyed by.
func (ce *ChannelEndpoint) Label() string { return ce.label }

// Media returns the media kind of the wrapped RTP channel.
func (ce *ChannelEndpoint) Media() frame.Kind { return ce.media }

// SetConnection attaches the abstract package-level listener that events
// are fanned to.
func (ce *ChannelEndpoint) SetConnection(c Connection) {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	ce.connection = c
}

func (ce *ChannelEndpoint) getConnection() Connection {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	return ce.connection
}

// SendFrame forwards to the wrapped RTP channel.
func (ce *ChannelEndpoint) SendFrame(f *frame.Frame) error {
	return ce.channel.SendFrame(f)
}

// ClearDTMFBuffer drains every pending DTMF tone on the wrapped channel.
func (ce *ChannelEndpoint) ClearDTMFBuffer() {
	for {
		if _, ok := ce.channel.NextDTMF(); !ok {
			return
		}
	}
}

// NextDTMF returns the next queued DTMF tone from the wrapped channel.
func (ce *ChannelEndpoint) NextDTMF() (int, bool) {
	return ce.channel.NextDTMF()
}

// IncreaseCounter bumps the reference count; the first increment wakes the
// RTP channel (spec §4.4).
func (ce *ChannelEndpoint) IncreaseCounter() {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	ce.counter++
	if ce.counter == 1 {
		ce.channel.WakeUp(true)
	}
}

// DecreaseCounter decrements the reference count; the last decrement
// returns the RTP channel to idle (spec §4.4).
func (ce *ChannelEndpoint) DecreaseCounter() {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if ce.counter == 0 {
		return
	}
	ce.counter--
	if ce.counter == 0 {
		ce.channel.WakeUp(false)
	}
}

// The following methods implement sip.Subscriber. Each forwards to the
// owning TransactionEndpoint and to the attached Connection.

func (ce *ChannelEndpoint) PayloadTypeChanged(label string, pt int) {
	// No dedicated Connection callback exists for this event in the
	// abstract package-connection surface; the owning transaction endpoint
	// is still informed so it can track per-channel format.
	ce.owner.channelPayloadTypeChanged(ce, pt)
}

func (ce *ChannelEndpoint) IncomingFrame(label string, f *frame.Frame) {
	ce.owner.channelIncomingFrame(ce, f)
	if c := ce.getConnection(); c != nil {
		c.IncomingFrame(f)
	}
}

func (ce *ChannelEndpoint) IncomingDTMF(label string, tone int) {
	ce.owner.channelIncomingDTMF(ce, tone)
	if c := ce.getConnection(); c != nil {
		c.IncomingDTMF(tone)
	}
}

func (ce *ChannelEndpoint) FrameSent(label string, f *frame.Frame) {
	ce.owner.channelFrameSent(ce, f)
	if c := ce.getConnection(); c != nil {
		c.FrameSent(f)
	}
}

func (ce *ChannelEndpoint) ChannelLocked(label string) {
	ce.owner.channelLocked(ce)
	if c := ce.getConnection(); c != nil {
		c.ChannelLocked()
	}
}

func (ce *ChannelEndpoint) ChannelUnlocked(label string) {
	ce.owner.channelUnlocked(ce)
	if c := ce.getConnection(); c != nil {
		c.ChannelUnlocked()
	}
}

func (ce *ChannelEndpoint) ChannelClosed(connectionID, label string) {
	ce.log.Info("channel endpoint closed")
	ce.owner.channelClosed(ce)
	if c := ce.getConnection(); c != nil {
		c.ChannelClosed()
	}
}

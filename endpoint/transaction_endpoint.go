package endpoint

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pgrabowski/mediactrl-sub001/frame"
	"github.com/pgrabowski/mediactrl-sub001/rtpchannel"
	"github.com/pgrabowski/mediactrl-sub001/sip"
)

// TransactionEndpoint is the root of the two-level endpoint hierarchy
// (spec §4.4): one instance per SIP dialog, keyed by `fromTag~toTag`,
// owning a ChannelEndpoint per negotiated media kind.
type TransactionEndpoint struct {
	mu sync.Mutex

	connectionID string
	transaction  *sip.Transaction
	connection   Connection

	channels map[frame.Kind]*ChannelEndpoint

	log *logrus.Entry
}

// NewTransactionEndpoint wraps tr as a transaction endpoint with no owned
// channels yet; channels are added as they're allocated via AddChannel.
func NewTransactionEndpoint(tr *sip.Transaction) *TransactionEndpoint {
	return &TransactionEndpoint{
		connectionID: tr.ConnectionID(),
		transaction:  tr,
		channels:     make(map[frame.Kind]*ChannelEndpoint),
		log:          logrus.WithFields(logrus.Fields{"package": "endpoint", "connection_id": tr.ConnectionID()}),
	}
}

// ConnectionID returns the fromTag~toTag dialog identifier.
func (te *TransactionEndpoint) ConnectionID() string { return te.connectionID }

// SetConnection attaches the abstract package-level listener fanned to on
// every owned channel's events.
func (te *TransactionEndpoint) SetConnection(c Connection) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.connection = c
}

func (te *TransactionEndpoint) getConnection() Connection {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.connection
}

// AddChannel wraps ch in a new ChannelEndpoint owned by te, keyed by the
// channel's media kind.
func (te *TransactionEndpoint) AddChannel(ch *rtpchannel.Channel) *ChannelEndpoint {
	ce := NewChannelEndpoint(te.connectionID, ch, te, te.transaction)
	te.mu.Lock()
	te.channels[ce.Media()] = ce
	te.mu.Unlock()
	return ce
}

// ChannelByMedia returns the owned channel endpoint for the given media
// kind, if any.
func (te *TransactionEndpoint) ChannelByMedia(media frame.Kind) (*ChannelEndpoint, bool) {
	te.mu.Lock()
	defer te.mu.Unlock()
	ce, ok := te.channels[media]
	return ce, ok
}

// SendFrame dispatches to the owned channel endpoint whose media kind
// matches f.Media (spec §4.4).
func (te *TransactionEndpoint) SendFrame(f *frame.Frame) error {
	ce, ok := te.ChannelByMedia(f.Media)
	if !ok {
		return fmt.Errorf("endpoint: no channel endpoint for media %s", f.Media)
	}
	return ce.SendFrame(f)
}

// NextDTMF returns the next queued DTMF tone from the first audio channel
// (spec §4.4: "DTMF queue queries on a transaction endpoint return the
// tone from the first audio channel").
func (te *TransactionEndpoint) NextDTMF() (int, bool) {
	ce, ok := te.ChannelByMedia(frame.KindAudio)
	if !ok {
		return 0, false
	}
	return ce.NextDTMF()
}

// ClearDTMFBuffer drains the first audio channel's DTMF queue.
func (te *TransactionEndpoint) ClearDTMFBuffer() {
	if ce, ok := te.ChannelByMedia(frame.KindAudio); ok {
		ce.ClearDTMFBuffer()
	}
}

// IncreaseCounter fans the reference-count increment across every owned
// channel (spec §4.4).
func (te *TransactionEndpoint) IncreaseCounter() {
	for _, ce := range te.snapshotChannels() {
		ce.IncreaseCounter()
	}
}

// DecreaseCounter fans the reference-count decrement across every owned
// channel (spec §4.4).
func (te *TransactionEndpoint) DecreaseCounter() {
	for _, ce := range te.snapshotChannels() {
		ce.DecreaseCounter()
	}
}

func (te *TransactionEndpoint) snapshotChannels() []*ChannelEndpoint {
	te.mu.Lock()
	defer te.mu.Unlock()
	out := make([]*ChannelEndpoint, 0, len(te.channels))
	for _, ce := range te.channels {
		out = append(out, ce)
	}
	return out
}

// The following are invoked by an owned ChannelEndpoint on every RTP
// callback it receives, forwarding "in parallel" with its own Connection
// fan-out (spec §4.4). TransactionEndpoint has no dedicated Connection
// callback surface distinct from its channels'; it exists to track
// per-channel state and to let a wrapping Connection (if one is attached
// at the transaction level) observe every owned channel's events too.

func (te *TransactionEndpoint) channelPayloadTypeChanged(ce *ChannelEndpoint, pt int) {
	te.log.WithFields(logrus.Fields{"label": ce.Label(), "pt": pt}).Debug("owned channel payload type changed")
}

func (te *TransactionEndpoint) channelIncomingFrame(ce *ChannelEndpoint, f *frame.Frame) {
	if c := te.getConnection(); c != nil {
		c.IncomingFrame(f)
	}
}

func (te *TransactionEndpoint) channelIncomingDTMF(ce *ChannelEndpoint, tone int) {
	if c := te.getConnection(); c != nil {
		c.IncomingDTMF(tone)
	}
}

func (te *TransactionEndpoint) channelFrameSent(ce *ChannelEndpoint, f *frame.Frame) {
	if c := te.getConnection(); c != nil {
		c.FrameSent(f)
	}
}

func (te *TransactionEndpoint) channelLocked(ce *ChannelEndpoint) {
	if c := te.getConnection(); c != nil {
		c.ChannelLocked()
	}
}

func (te *TransactionEndpoint) channelUnlocked(ce *ChannelEndpoint) {
	if c := te.getConnection(); c != nil {
		c.ChannelUnlocked()
	}
}

func (te *TransactionEndpoint) channelClosed(ce *ChannelEndpoint) {
	te.mu.Lock()
	delete(te.channels, ce.Media())
	te.mu.Unlock()
	if c := te.getConnection(); c != nil {
		c.ChannelClosed()
	}
}

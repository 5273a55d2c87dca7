package sip

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pgrabowski/mediactrl-sub001/codec"
	"github.com/pgrabowski/mediactrl-sub001/frame"
	"github.com/pgrabowski/mediactrl-sub001/rtpchannel"
)

// Subscriber is a package-layer manager that receives per-label media
// events forwarded by a Transaction, per spec §4.5. connectionID/label
// identify which Transaction and channel the event came from.
type Subscriber interface {
	PayloadTypeChanged(label string, pt int)
	IncomingFrame(label string, f *frame.Frame)
	IncomingDTMF(label string, tone int)
	FrameSent(label string, f *frame.Frame)
	ChannelLocked(label string)
	ChannelUnlocked(label string)
	ChannelClosed(connectionID, label string)
}

// Transaction holds one SIP dialog's RTP channels, keyed both by local
// port and by label, and acts as the single rtpchannel.Subscriber for
// every channel it owns, fanning events out to the currently-registered
// package-layer subscriber for the relevant label (spec §4.5).
//
// Per-label subscriber lists are a stack, not a single slot: only the top
// entry ever receives callbacks, and `UnsetSubscriber` clears the whole
// list rather than removing one entry. SPEC_FULL §9 decided this should be
// implemented literally as observed (`MediaCtrlSipManagers` is a real
// `list<MediaCtrlSipManager*>` in the original, not an accidental
// single-slot wrapper), not redesigned into an explicit "current
// subscriber" slot.
type Transaction struct {
	mu sync.Mutex

	callID       string
	connectionID string // fromTag~toTag

	registry  *codec.Registry
	collector *frame.Collector

	channelsByPort  map[int]*rtpchannel.Channel
	channelsByLabel map[string]*rtpchannel.Channel
	labels          []string

	subscribers    map[string][]Subscriber
	allSubscribers []Subscriber

	log *logrus.Entry
}

// NewTransaction creates a Transaction for one SIP dialog, identified by
// the connection id fromTag~toTag (spec §6).
func NewTransaction(callID, fromTag, toTag string, registry *codec.Registry, collector *frame.Collector) *Transaction {
	connID := fromTag + "~" + toTag
	return &Transaction{
		callID:          callID,
		connectionID:    connID,
		registry:        registry,
		collector:       collector,
		channelsByPort:  make(map[int]*rtpchannel.Channel),
		channelsByLabel: make(map[string]*rtpchannel.Channel),
		subscribers:     make(map[string][]Subscriber),
		log:             logrus.WithFields(logrus.Fields{"package": "sip", "connection_id": connID}),
	}
}

// ConnectionID returns the fromTag~toTag dialog identifier.
func (t *Transaction) ConnectionID() string { return t.connectionID }

// Allocate creates a new RTP channel for media/pt, bound to a fresh local
// UDP socket on listenAddr, registers it under both lookup maps, and
// registers this Transaction as its RTP-events subscriber. Returns the new
// channel so the caller can read its assigned local port and label for the
// SDP answer.
func (t *Transaction) Allocate(media frame.Kind, pt int, listenAddr string) (*rtpchannel.Channel, error) {
	ch, err := rtpchannel.NewChannel(listenAddr, media, pt, t.registry, t.collector)
	if err != nil {
		return nil, fmt.Errorf("sip: allocate channel: %w", err)
	}
	ch.SetSubscriber(t)
	ch.SetTransactionID(t.connectionID)

	t.mu.Lock()
	t.channelsByPort[ch.LocalPort()] = ch
	t.channelsByLabel[ch.Label()] = ch
	t.labels = append(t.labels, ch.Label())
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{"label": ch.Label(), "port": ch.LocalPort(), "media": media.String()}).Info("rtp channel allocated")
	return ch, nil
}

// ChannelByPort looks up an owned channel by its local port.
func (t *Transaction) ChannelByPort(port int) (*rtpchannel.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channelsByPort[port]
	if !ok {
		return nil, ErrUnknownPort
	}
	return ch, nil
}

// ChannelByLabel looks up an owned channel by its SDP label.
func (t *Transaction) ChannelByLabel(label string) (*rtpchannel.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channelsByLabel[label]
	if !ok {
		return nil, ErrUnknownLabel
	}
	return ch, nil
}

// ListLabels returns every label allocated on this Transaction, in
// allocation order.
func (t *Transaction) ListLabels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// SetPeer sets the remote address of the channel identified by label.
func (t *Transaction) SetPeer(label string, addr net.Addr) error {
	ch, err := t.ChannelByLabel(label)
	if err != nil {
		return err
	}
	ch.SetPeer(addr)
	return nil
}

// SetDirection sets the negotiated SDP direction of the channel identified
// by label.
func (t *Transaction) SetDirection(label string, d rtpchannel.Direction) error {
	ch, err := t.ChannelByLabel(label)
	if err != nil {
		return err
	}
	ch.SetDirection(d)
	return nil
}

// AddSetting parses an SDP fmtp value on the channel identified by label
// and returns the reconstructed reply string.
func (t *Transaction) AddSetting(label, value string) (string, error) {
	ch, err := t.ChannelByLabel(label)
	if err != nil {
		return "", err
	}
	return ch.AddSetting(value), nil
}

// RegisterSubscriber pushes sub onto the stack for label. Only the top of
// the stack receives forwarded events.
func (t *Transaction) RegisterSubscriber(label string, sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers[label] = append(t.subscribers[label], sub)
}

// UnsetSubscriber clears the entire subscriber stack for label, per the
// observed-behavior decision recorded in SPEC_FULL §9.
func (t *Transaction) UnsetSubscriber(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, label)
}

// RegisterSubscriberForAll pushes sub onto the fallback stack consulted
// for any label with no label-specific subscriber registered.
func (t *Transaction) RegisterSubscriberForAll(sub Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allSubscribers = append(t.allSubscribers, sub)
}

// UnsetAllSubscriber clears the all-labels fallback stack.
func (t *Transaction) UnsetAllSubscriber() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allSubscribers = nil
}

func (t *Transaction) topSubscriber(label string) Subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stack := t.subscribers[label]; len(stack) > 0 {
		return stack[len(stack)-1]
	}
	if len(t.allSubscribers) > 0 {
		return t.allSubscribers[len(t.allSubscribers)-1]
	}
	return nil
}

// The following methods implement rtpchannel.Subscriber, making Transaction
// the single RTP-events subscriber for every channel it owns (spec §4.5).

func (t *Transaction) PayloadTypeChanged(ch *rtpchannel.Channel, pt int) {
	if sub := t.topSubscriber(ch.Label()); sub != nil {
		sub.PayloadTypeChanged(ch.Label(), pt)
	}
}

func (t *Transaction) IncomingFrame(ch *rtpchannel.Channel, f *frame.Frame) {
	if sub := t.topSubscriber(ch.Label()); sub != nil {
		sub.IncomingFrame(ch.Label(), f)
	}
}

func (t *Transaction) IncomingDTMF(ch *rtpchannel.Channel, tone int) {
	if sub := t.topSubscriber(ch.Label()); sub != nil {
		sub.IncomingDTMF(ch.Label(), tone)
	}
}

func (t *Transaction) FrameSent(ch *rtpchannel.Channel, f *frame.Frame) {
	if sub := t.topSubscriber(ch.Label()); sub != nil {
		sub.FrameSent(ch.Label(), f)
	}
}

func (t *Transaction) ChannelLocked(ch *rtpchannel.Channel) {
	if sub := t.topSubscriber(ch.Label()); sub != nil {
		sub.ChannelLocked(ch.Label())
	}
}

func (t *Transaction) ChannelUnlocked(ch *rtpchannel.Channel) {
	if sub := t.topSubscriber(ch.Label()); sub != nil {
		sub.ChannelUnlocked(ch.Label())
	}
}

// ChannelClosed implements the close cascade of spec §4.5: notify the top
// subscriber for the label, clear its stack, and drop the channel from
// both lookup maps.
func (t *Transaction) ChannelClosed(label string) {
	sub := t.topSubscriber(label)

	t.mu.Lock()
	ch := t.channelsByLabel[label]
	delete(t.subscribers, label)
	delete(t.channelsByLabel, label)
	if ch != nil {
		delete(t.channelsByPort, ch.LocalPort())
	}
	t.labels = removeLabel(t.labels, label)
	t.mu.Unlock()

	if sub != nil {
		sub.ChannelClosed(t.connectionID, label)
	}
}

func removeLabel(labels []string, target string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

// Close destroys every RTP channel this Transaction owns. Each Close
// cascades into ChannelClosed above, which drains the maps.
func (t *Transaction) Close() {
	t.mu.Lock()
	channels := make([]*rtpchannel.Channel, 0, len(t.channelsByLabel))
	for _, ch := range t.channelsByLabel {
		channels = append(channels, ch)
	}
	t.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
	t.log.Info("transaction closed")
}

package sip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgrabowski/mediactrl-sub001/codec"
	"github.com/pgrabowski/mediactrl-sub001/frame"
)

type recordingSubscriber struct {
	name          string
	ptChanges     []int
	frames        []*frame.Frame
	dtmf          []int
	sent          []*frame.Frame
	locked        int
	unlocked      int
	closedLabels  []string
	closedConnIDs []string
}

func (r *recordingSubscriber) PayloadTypeChanged(label string, pt int) {
	r.ptChanges = append(r.ptChanges, pt)
}
func (r *recordingSubscriber) IncomingFrame(label string, f *frame.Frame) {
	r.frames = append(r.frames, f)
}
func (r *recordingSubscriber) IncomingDTMF(label string, tone int)    { r.dtmf = append(r.dtmf, tone) }
func (r *recordingSubscriber) FrameSent(label string, f *frame.Frame) { r.sent = append(r.sent, f) }
func (r *recordingSubscriber) ChannelLocked(label string)             { r.locked++ }
func (r *recordingSubscriber) ChannelUnlocked(label string)           { r.unlocked++ }
func (r *recordingSubscriber) ChannelClosed(connectionID, label string) {
	r.closedConnIDs = append(r.closedConnIDs, connectionID)
	r.closedLabels = append(r.closedLabels, label)
}

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()
	return NewTransaction("call-1", "from-tag", "to-tag", codec.NewDefaultRegistry(), frame.NewCollector())
}

func TestTransaction_AllocateAndLookup(t *testing.T) {
	tr := newTestTransaction(t)
	ch, err := tr.Allocate(frame.KindAudio, 0, "127.0.0.1:0")
	require.NoError(t, err)

	byPort, err := tr.ChannelByPort(ch.LocalPort())
	require.NoError(t, err)
	assert.Same(t, ch, byPort)

	byLabel, err := tr.ChannelByLabel(ch.Label())
	require.NoError(t, err)
	assert.Same(t, ch, byLabel)

	assert.Equal(t, []string{ch.Label()}, tr.ListLabels())

	_, err = tr.ChannelByPort(1)
	assert.ErrorIs(t, err, ErrUnknownPort)
	_, err = tr.ChannelByLabel("nope")
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

// TestTransaction_SubscriberStack verifies the decided Open Question
// behavior: subscribers form a stack, only the top receives events, and
// UnsetSubscriber clears the whole stack rather than popping one entry.
func TestTransaction_SubscriberStack(t *testing.T) {
	tr := newTestTransaction(t)
	ch, err := tr.Allocate(frame.KindAudio, 0, "127.0.0.1:0")
	require.NoError(t, err)

	first := &recordingSubscriber{name: "first"}
	second := &recordingSubscriber{name: "second"}
	tr.RegisterSubscriber(ch.Label(), first)
	tr.RegisterSubscriber(ch.Label(), second)

	tr.PayloadTypeChanged(ch, 8)
	assert.Empty(t, first.ptChanges, "only the top of the stack should be notified")
	assert.Equal(t, []int{8}, second.ptChanges)

	tr.UnsetSubscriber(ch.Label())
	tr.PayloadTypeChanged(ch, 0)
	assert.Empty(t, first.ptChanges)
	assert.Equal(t, []int{8}, second.ptChanges, "unset clears the whole stack, not just the top")
}

func TestTransaction_AllLabelsFallback(t *testing.T) {
	tr := newTestTransaction(t)
	ch, err := tr.Allocate(frame.KindAudio, 0, "127.0.0.1:0")
	require.NoError(t, err)

	all := &recordingSubscriber{name: "all"}
	tr.RegisterSubscriberForAll(all)

	tr.IncomingDTMF(ch, 5)
	assert.Equal(t, []int{5}, all.dtmf)

	specific := &recordingSubscriber{name: "specific"}
	tr.RegisterSubscriber(ch.Label(), specific)
	tr.IncomingDTMF(ch, 6)
	assert.Equal(t, []int{5}, all.dtmf, "label-specific subscriber takes priority over the fallback")
	assert.Equal(t, []int{6}, specific.dtmf)
}

func TestTransaction_ChannelClosedCascade(t *testing.T) {
	tr := newTestTransaction(t)
	ch, err := tr.Allocate(frame.KindAudio, 0, "127.0.0.1:0")
	require.NoError(t, err)
	label := ch.Label()
	port := ch.LocalPort()

	sub := &recordingSubscriber{}
	tr.RegisterSubscriber(label, sub)

	tr.ChannelClosed(label)

	assert.Equal(t, []string{label}, sub.closedLabels)
	assert.Equal(t, []string{tr.ConnectionID()}, sub.closedConnIDs)

	_, err = tr.ChannelByLabel(label)
	assert.ErrorIs(t, err, ErrUnknownLabel)
	_, err = tr.ChannelByPort(port)
	assert.ErrorIs(t, err, ErrUnknownPort)
	assert.Empty(t, tr.ListLabels())

	// A second close on an already-removed label notifies no one and does
	// not panic.
	tr.ChannelClosed(label)
	assert.Len(t, sub.closedLabels, 1)
}

func TestTransaction_Close(t *testing.T) {
	tr := newTestTransaction(t)
	_, err := tr.Allocate(frame.KindAudio, 0, "127.0.0.1:0")
	require.NoError(t, err)
	_, err = tr.Allocate(frame.KindAudio, 8, "127.0.0.1:0")
	require.NoError(t, err)

	tr.Close()
	assert.Empty(t, tr.ListLabels())
}

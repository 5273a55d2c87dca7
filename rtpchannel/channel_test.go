package rtpchannel

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgrabowski/mediactrl-sub001/codec"
	"github.com/pgrabowski/mediactrl-sub001/frame"
)

// fakeClock is a controllable frame.TimeProvider for deterministic
// tempification tests (testable properties 7 and 8).
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1000, 0)} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

// fixedSSRC always returns the same value, for deterministic packet
// assertions.
type fixedSSRC struct{ v uint32 }

func (s fixedSSRC) GenerateSSRC() (uint32, error) { return s.v, nil }

// recordingSubscriber captures every Subscriber callback for assertions.
type recordingSubscriber struct {
	mu        sync.Mutex
	frames    []*frame.Frame
	dtmf      []int
	sent      []*frame.Frame
	locked    int
	unlocked  int
	closed    []string
	ptChanges []int
}

func (r *recordingSubscriber) PayloadTypeChanged(ch *Channel, pt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ptChanges = append(r.ptChanges, pt)
}
func (r *recordingSubscriber) IncomingFrame(ch *Channel, f *frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}
func (r *recordingSubscriber) IncomingDTMF(ch *Channel, tone int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dtmf = append(r.dtmf, tone)
}
func (r *recordingSubscriber) FrameSent(ch *Channel, f *frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, f)
}
func (r *recordingSubscriber) ChannelLocked(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked++
}
func (r *recordingSubscriber) ChannelUnlocked(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocked++
}
func (r *recordingSubscriber) ChannelClosed(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, label)
}

func (r *recordingSubscriber) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func newTestChannel(t *testing.T, pt int) *Channel {
	t.Helper()
	ch, err := NewChannelWithProviders("127.0.0.1:0", frame.KindAudio, pt, codec.NewDefaultRegistry(), nil, newFakeClock(), fixedSSRC{v: 42})
	require.NoError(t, err)
	t.Cleanup(ch.Close)
	return ch
}

func TestChannel_IdempotentPayloadTypeSet(t *testing.T) {
	ch := newTestChannel(t, 0)
	first := ch.codec
	require.NotNil(t, first)

	require.NoError(t, ch.SetPayloadType(0))
	assert.Same(t, first, ch.codec)
	assert.Equal(t, "PCMU", ch.codec.Name())
}

func TestChannel_MarkerBitReassembly(t *testing.T) {
	ch := newTestChannel(t, 0)
	sub := &recordingSubscriber{}
	ch.SetSubscriber(sub)

	ch.handleTransportPacket(&rtp.Packet{
		Header:  rtp.Header{PayloadType: 0, Marker: false, Timestamp: 160},
		Payload: make([]byte, codec.AudioSamplesPerFrame),
	}, nil)
	ch.handleTransportPacket(&rtp.Packet{
		Header:  rtp.Header{PayloadType: 0, Marker: false, Timestamp: 160},
		Payload: make([]byte, codec.AudioSamplesPerFrame),
	}, nil)
	ch.handleTransportPacket(&rtp.Packet{
		Header:  rtp.Header{PayloadType: 0, Marker: true, Timestamp: 160},
		Payload: make([]byte, codec.AudioSamplesPerFrame),
	}, nil)

	require.Equal(t, 1, sub.frameCount())
	head := sub.frames[0].Original
	require.NotNil(t, head)
	assert.Len(t, head.Appended, 2)
}

func TestChannel_DTMFFIFO(t *testing.T) {
	ch := newTestChannel(t, 0)
	sub := &recordingSubscriber{}
	ch.SetSubscriber(sub)

	tones := []byte{1, 2, 3, 10, 11}
	for _, tone := range tones {
		ch.handleTransportPacket(&rtp.Packet{
			Header:  rtp.Header{PayloadType: 101, Marker: true},
			Payload: []byte{tone, 0, 0, 0},
		}, nil)
	}

	var drained []int
	for {
		tone, ok := ch.NextDTMF()
		if !ok {
			break
		}
		drained = append(drained, tone)
	}
	assert.Equal(t, []int{1, 2, 3, 10, 11}, drained)
	assert.Equal(t, []int{1, 2, 3, 10, 11}, sub.dtmf)
}

func TestChannel_LockingDiscipline(t *testing.T) {
	ch := newTestChannel(t, 0)
	ch.SetPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40000})
	sub := &recordingSubscriber{}
	ch.SetSubscriber(sub)

	raw := make([]byte, codec.RawBlockLength)
	lockFrame := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	lockFrame.Type = frame.TypeLocking
	lockFrame.Owner = "A"
	require.NoError(t, ch.SendFrame(lockFrame))
	assert.Equal(t, 1, sub.locked)

	bOwned := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	bOwned.Owner = "B"
	err := ch.SendFrame(bOwned)
	assert.ErrorIs(t, err, ErrLockViolation)

	aOwned := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	aOwned.Owner = "A"
	require.NoError(t, ch.SendFrame(aOwned))

	unlockFrame := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	unlockFrame.Type = frame.TypeUnlocking
	unlockFrame.Owner = "A"
	require.NoError(t, ch.SendFrame(unlockFrame))
	assert.Equal(t, 1, sub.unlocked)

	again := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	again.Owner = "B"
	assert.NoError(t, ch.SendFrame(again))
}

func TestChannel_TempificationMonotonic(t *testing.T) {
	clock := newFakeClock()
	ch, err := NewChannelWithProviders("127.0.0.1:0", frame.KindAudio, 0, codec.NewDefaultRegistry(), nil, clock, fixedSSRC{v: 1})
	require.NoError(t, err)
	t.Cleanup(ch.Close)
	ch.SetPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40001})

	raw := make([]byte, codec.RawBlockLength)
	f1 := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	require.NoError(t, ch.SendFrame(f1))
	firstTS := ch.num

	clock.Advance(20 * time.Millisecond)
	f2 := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	require.NoError(t, ch.SendFrame(f2))
	secondTS := ch.num

	assert.Equal(t, uint32(ch.clockRate), secondTS-firstTS)
	assert.GreaterOrEqual(t, secondTS, firstTS)
}

func TestChannel_BurstMarkerBit(t *testing.T) {
	clock := newFakeClock()
	ch, err := NewChannelWithProviders("127.0.0.1:0", frame.KindAudio, 0, codec.NewDefaultRegistry(), nil, clock, fixedSSRC{v: 1})
	require.NoError(t, err)
	t.Cleanup(ch.Close)
	ch.SetPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40002})

	raw := make([]byte, codec.RawBlockLength)
	f1 := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	require.NoError(t, ch.SendFrame(f1))

	clock.Advance(10 * audioPeriodMicros * time.Microsecond)
	ch.mu.Lock()
	_, marker := ch.nextTimestampLocked()
	ch.mu.Unlock()
	assert.True(t, marker)
}

func TestChannel_S1_PCMULoopback(t *testing.T) {
	a := newTestChannel(t, 0)
	b := newTestChannel(t, 0)

	subB := &recordingSubscriber{}
	b.SetSubscriber(subB)

	a.SetPeer(b.LocalAddr())
	b.SetPeer(a.LocalAddr())

	samples := make([]int16, codec.AudioSamplesPerFrame)
	for i := range samples {
		samples[i] = int16(1000)
	}
	raw := make([]byte, codec.RawBlockLength)
	for i, s := range samples {
		raw[i*2] = byte(uint16(s))
		raw[i*2+1] = byte(uint16(s) >> 8)
	}
	f := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
	require.NoError(t, a.SendFrame(f))

	require.Eventually(t, func() bool { return subB.frameCount() == 1 }, time.Second, 5*time.Millisecond)

	got := subB.frames[0]
	assert.Equal(t, frame.KindAudio, got.Media)
	assert.Equal(t, frame.FormatRaw, got.Format)
	assert.Len(t, got.Buffer, codec.RawBlockLength)
}

func TestChannel_S4_AnnouncementLocking(t *testing.T) {
	ch := newTestChannel(t, 0)
	ch.SetPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40003})
	sub := &recordingSubscriber{}
	ch.SetSubscriber(sub)

	raw := make([]byte, codec.RawBlockLength)
	mk := func(owner frame.OwnerID, typ frame.Type) *frame.Frame {
		f := frame.NewBuffered(nil, frame.KindAudio, raw, frame.FormatRaw)
		f.Owner = owner
		f.Type = typ
		return f
	}

	lockF := mk("A", frame.TypeLocking)
	f1 := mk("A", frame.TypeNormal)
	f2 := mk("A", frame.TypeNormal)
	f3 := mk("A", frame.TypeNormal)
	unlockF := mk("A", frame.TypeUnlocking)

	require.NoError(t, ch.SendFrame(lockF))
	bFrame := mk("B", frame.TypeNormal)
	assert.ErrorIs(t, ch.SendFrame(bFrame), ErrLockViolation)
	require.NoError(t, ch.SendFrame(f1))
	require.NoError(t, ch.SendFrame(f2))
	require.NoError(t, ch.SendFrame(f3))
	require.NoError(t, ch.SendFrame(unlockF))

	assert.Len(t, sub.sent, 5)

	afterUnlock := mk("B", frame.TypeNormal)
	assert.NoError(t, ch.SendFrame(afterUnlock))
}

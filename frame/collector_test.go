package frame

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTime is a controllable TimeProvider for deterministic Collector
// reclamation tests.
type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTime() *fakeTime { return &fakeTime{now: time.Unix(0, 0)} }

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCollector_RegistersOnlyWhenActive(t *testing.T) {
	c := NewCollectorWithOptions(10*time.Millisecond, newFakeTime())
	f := New(c, KindAudio)
	assert.Equal(t, 0, c.Len(), "frame built before Start must not be tracked")
	_ = f

	c.Start()
	defer c.Stop()
	New(c, KindAudio)
	assert.Equal(t, 1, c.Len())
}

func TestCollector_ReclaimsAfterWindow(t *testing.T) {
	ft := newFakeTime()
	c := NewCollectorWithOptions(5*time.Millisecond, ft)
	c.Start()
	defer c.Stop()

	for i := 0; i < 100; i++ {
		New(c, KindAudio)
	}
	require.Equal(t, 100, c.Len())

	// Still reachable well inside the window (scenario S5: reachable at t=2s).
	ft.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 100, c.Len())

	// Past the window (scenario S5: gone by t=4.5s).
	ft.Advance(2500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCollector_StopDrainsRegardlessOfAge(t *testing.T) {
	c := NewCollector()
	c.Start()
	New(c, KindAudio)
	New(c, KindAudio)
	require.Equal(t, 2, c.Len())
	c.Stop()
	assert.Equal(t, 0, c.Len())
}

func TestFrame_AppendFrameOnlyOnHead(t *testing.T) {
	head := New(nil, KindAudio)
	child := New(nil, KindAudio)
	head.AppendFrame(child)
	require.Len(t, head.Appended, 1)
	assert.Same(t, child, head.Appended[0])
}

func TestNewBuffered_AudioFrameOwnsCopy(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	f := NewBuffered(nil, KindAudio, src, FormatRaw)
	require.True(t, f.Allocated)
	src[0] = 0xff
	assert.Equal(t, byte(1), f.Buffer[0], "frame must own its own copy of the buffer")
}

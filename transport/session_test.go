package transport

import (
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SendReceiveLoopback(t *testing.T) {
	recv, err := NewSession("127.0.0.1:0")
	require.NoError(t, err)
	defer recv.Close()

	send, err := NewSession("127.0.0.1:0")
	require.NoError(t, err)
	defer send.Close()

	received := make(chan *rtp.Packet, 1)
	recv.SetHandler(func(pkt *rtp.Packet, addr net.Addr) {
		received <- pkt
	})

	send.SetRemote(recv.LocalAddr())
	pkt := &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 0, SequenceNumber: 1, Timestamp: 160, SSRC: 42},
		Payload: []byte{1, 2, 3, 4},
	}
	require.NoError(t, send.Send(pkt))

	select {
	case got := <-received:
		assert.Equal(t, uint8(0), got.PayloadType)
		assert.Equal(t, []byte{1, 2, 3, 4}, got.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for loopback packet")
	}
}

func TestSession_SendWithoutPeerFails(t *testing.T) {
	s, err := NewSession("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()

	err = s.Send(&rtp.Packet{Header: rtp.Header{Version: 2}})
	assert.ErrorIs(t, err, errPeerUnset)
}

func TestDefaultProfile_StaticMapping(t *testing.T) {
	e, ok := DefaultProfile.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, "PCMU", e.Name)

	e, ok = DefaultProfile.Lookup(TelephoneEventPayloadType)
	require.True(t, ok)
	assert.Equal(t, 8000, e.ClockRateHz)
}

package endpoint

import "github.com/pgrabowski/mediactrl-sub001/frame"

// Connection is the abstract package-level listener attached to an
// endpoint (spec §4.4): the control-package side of the wrapper, which
// receives the same callbacks an RTP subscriber would but without any
// knowledge of SIP or RTP Channel internals. ChannelEndpoint and Conference
// both fan events to one of these "in parallel" with their other
// forwarding duties.
type Connection interface {
	IncomingFrame(f *frame.Frame)
	IncomingDTMF(tone int)
	FrameSent(f *frame.Frame)
	ChannelLocked()
	ChannelUnlocked()
	ChannelClosed()
}

package endpoint

import (
	"sync"

	"github.com/pgrabowski/mediactrl-sub001/frame"
)

// Conference is the degenerate endpoint variant of spec §4.4: it holds
// only an abstract Connection and fans sends/receives directly to it
// without ever touching an RTP channel. Most operations are no-ops.
type Conference struct {
	mu sync.Mutex

	confID     string
	connection Connection
}

// NewConference creates an empty Conference endpoint keyed by confID.
func NewConference(confID string) *Conference {
	return &Conference{confID: confID}
}

// ConfID returns the conf-id this endpoint is keyed by.
func (c *Conference) ConfID() string { return c.confID }

// SetConnection attaches the abstract package-level listener.
func (c *Conference) SetConnection(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connection = conn
}

func (c *Conference) getConnection() Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection
}

// SendFrame fans f directly to the attached Connection; there is no RTP
// channel to forward to.
func (c *Conference) SendFrame(f *frame.Frame) {
	if conn := c.getConnection(); conn != nil {
		conn.IncomingFrame(f)
	}
}

// IncomingFrame fans a frame produced elsewhere in the conference mix to
// the attached Connection.
func (c *Conference) IncomingFrame(f *frame.Frame) {
	if conn := c.getConnection(); conn != nil {
		conn.IncomingFrame(f)
	}
}

// The remaining operations are unused by a Conference endpoint, matching
// the degenerate variant described in spec §4.4.

func (c *Conference) ClearDTMFBuffer()      {}
func (c *Conference) NextDTMF() (int, bool) { return 0, false }
func (c *Conference) IncreaseCounter()      {}
func (c *Conference) DecreaseCounter()      {}

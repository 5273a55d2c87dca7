// Package transport implements the RTP/UDP wire layer: a static AVP
// profile (spec §6) and a UDP session that marshals/unmarshals RTP
// packets via github.com/pion/rtp and dispatches received packets to a
// registered handler.
package transport

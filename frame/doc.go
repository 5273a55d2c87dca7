// Package frame implements the unit of media exchanged between the RTP
// channel, the codec registry, and the endpoint hierarchy, along with the
// deferred-reclamation Collector that owns every live Frame's lifetime.
package frame

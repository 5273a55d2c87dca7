// Package codec implements the codec registry and factory model from
// spec §4.2: a uniform Codec interface, a Registry that binds negotiated
// RTP payload types or SDP encoding names to codec instances, and the
// PCMU, PCMA, GSM, and (optional) Opus implementations.
package codec

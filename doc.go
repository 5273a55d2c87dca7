// Package mediactrl implements the media-control core of a SIP/RTP
// announcement and collection engine: RTP Channel state machines, pluggable
// audio codecs, frame reassembly, and the two-level endpoint hierarchy a
// SIP dialog uses to address them.
//
// The functionality is split across focused subpackages rather than
// exposed through a facade type at this root:
//
//   - [frame]: the Frame value type and its Collector (construction,
//     timestamps, append-chaining for marker-bit reassembly)
//   - [codec]: the codec Registry, its plugin Factory mechanism, and the
//     PCMU/PCMA/GSM/Opus implementations
//   - [transport]: the AVP/UDP transport session RTP Channels send and
//     receive over
//   - [rtpchannel]: the RTP Channel itself: tempification, reassembly,
//     locking discipline, jitter estimation
//   - [endpoint]: the TransactionEndpoint/ChannelEndpoint/Conference
//     wrapper hierarchy that fans RTP events to abstract package
//     connections
//   - [sip]: the Transaction, the SIP-facing holder of one dialog's RTP
//     channels and their package-layer subscribers
package mediactrl

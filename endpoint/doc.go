// Package endpoint implements the two-level endpoint hierarchy of spec
// §4.4: a TransactionEndpoint wraps a SIP dialog's set of ChannelEndpoints,
// each owning one RTP channel and fanning its events to an abstract
// package-level connection.
package endpoint

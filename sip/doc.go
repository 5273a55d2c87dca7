// Package sip implements the Transaction, the SIP-facing media holder of
// spec §4.5: it owns one dialog's RTP channels, is the single RTP-events
// subscriber for all of them, and publishes per-label package-layer
// subscriber stacks.
package sip

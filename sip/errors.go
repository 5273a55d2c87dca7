package sip

import "errors"

// ErrUnknownLabel is returned by label lookups for a label this
// Transaction does not own.
var ErrUnknownLabel = errors.New("sip: unknown media label")

// ErrUnknownPort is returned by local-port lookups for a port this
// Transaction does not own.
var ErrUnknownPort = errors.New("sip: unknown local port")

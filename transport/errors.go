package transport

import "errors"

// errPeerUnset indicates Send was called before SetRemote. The
// rtpchannel package maps this onto the PeerUnset error kind from spec §7
// (silently dropped at the channel level); Session itself simply reports
// it as an ordinary Go error to its one caller, the channel's send path.
var errPeerUnset = errors.New("transport: remote address not set")

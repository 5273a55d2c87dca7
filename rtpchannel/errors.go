package rtpchannel

import "errors"

// Error kinds from spec §7. SendFrame drops the frame and returns
// ErrPeerUnset, ErrLockViolation, ErrMediaMismatch,
// ErrTranscodeUnsupported or ErrCodecUnavailable to its caller; nothing is
// raised beyond that return value. The receive path logs a decode failure
// or a reassembly overflow and drops the frame without returning
// ErrDecodeFailure or ErrReassemblyOverflow. ErrFatal is returned by
// channel construction.
var (
	// ErrPeerUnset — send attempted before SetPeer.
	ErrPeerUnset = errors.New("rtpchannel: peer not set")
	// ErrMediaMismatch — frame media kind does not match the channel's.
	ErrMediaMismatch = errors.New("rtpchannel: frame media kind does not match channel")
	// ErrLockViolation — send attempted on a locked channel by a non-owner.
	ErrLockViolation = errors.New("rtpchannel: channel is locked by another owner")
	// ErrTranscodeUnsupported — encoded-to-encoded send without a matching payload type.
	ErrTranscodeUnsupported = errors.New("rtpchannel: cannot transcode between encoded formats")
	// ErrCodecUnavailable — no codec attached, or codec failed to start.
	ErrCodecUnavailable = errors.New("rtpchannel: no codec attached")
	// ErrDecodeFailure — codec returned nil on decode.
	ErrDecodeFailure = errors.New("rtpchannel: codec decode failed")
	// ErrReassemblyOverflow — pending reassembly queue exceeded its cap.
	ErrReassemblyOverflow = errors.New("rtpchannel: reassembly queue overflow")
	// ErrFatal — transport session construction failed; the channel is unusable.
	ErrFatal = errors.New("rtpchannel: fatal transport error")
)

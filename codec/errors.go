package codec

import "errors"

// Construction and negotiation errors.
var (
	// ErrUnknownPayloadType indicates the registry has no factory whose
	// AVP set or name regex matches the request.
	ErrUnknownPayloadType = errors.New("codec: no factory matches payload type or name")

	// ErrAlreadyStarted indicates Start was called on a codec instance
	// that has already been started.
	ErrAlreadyStarted = errors.New("codec: instance already started")

	// ErrNotStarted indicates Encode or Decode was called before Start.
	ErrNotStarted = errors.New("codec: instance not started")
)

// Encode/decode refusal kinds. Encode and Decode report a refusal by
// returning nil (see Codec), not one of these values, and no function in
// this package returns them; rtpchannel maps a nil Encode result onto
// its own ErrCodecUnavailable.
var (
	// ErrNotRaw indicates Encode was asked to encode an already-encoded
	// frame; codecs never transcode between encoded formats.
	ErrNotRaw = errors.New("codec: encode input is not raw")

	// ErrWrongBlockLength indicates the input buffer length does not
	// match the codec's expected block size.
	ErrWrongBlockLength = errors.New("codec: input length does not match codec block size")
)

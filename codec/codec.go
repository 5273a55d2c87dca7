package codec

import (
	"regexp"

	"github.com/pgrabowski/mediactrl-sub001/frame"
)

// Codec is the uniform contract every codec implementation satisfies, per
// spec §4.2. Encode/decode return nil on failure rather than an error, to
// preserve the spec's "decode returns nil, frame is not surfaced" contract
// at the call site; construction- and negotiation-time failures do use Go
// errors (see errors.go), since those are not on the per-frame hot path.
type Codec interface {
	// MatchesAVT reports whether this codec answers to RTP AVP payload
	// type n.
	MatchesAVT(n int) bool
	// MatchesName reports whether this codec's name regex matches s,
	// case-insensitively, as negotiated via an SDP rtpmap encoding name.
	MatchesName(s string) bool

	// Start initializes backing state. Must be called before Encode or
	// Decode. Calling Start twice returns ErrAlreadyStarted.
	Start() error

	// AddSetting stores an opaque key/value configuration pair. Must be
	// called before Start.
	AddSetting(key, value string)
	// GetSetting retrieves a previously stored setting.
	GetSetting(key string) (string, bool)

	// SetCollector attaches the Collector that Encode/Decode register
	// their output Frames with, so every Frame a codec produces is
	// entered into a Collector at birth, per spec §3/§6.
	SetCollector(c *frame.Collector)

	// Encode converts a raw Frame to an encoded Frame, or returns nil if
	// the input is not raw, the codec has not been started, or the input
	// length does not match the codec's block size.
	Encode(f *frame.Frame) *frame.Frame
	// Decode converts an encoded Frame to a raw Frame, or returns nil on
	// any block-size mismatch or backing-codec failure.
	Decode(f *frame.Frame) *frame.Frame

	// Name returns the codec's human-readable name (e.g. "GSM").
	Name() string
	// ClockRate returns the codec's clock rate in Hz.
	ClockRate() int
	// BlockLength returns the canonical encoded block size in bytes.
	BlockLength() int
	// PayloadType returns the payload type this codec instance was
	// constructed with: its static AVP number, or for a dynamic-PT codec
	// the fixed value its constructor assigns (see Registry.CreateByName).
	PayloadType() int
}

// Factory is the codec factory descriptor from spec §3: a human name, a
// case-insensitive name regex matched against SDP rtpmap encoding names, a
// typical block length, and the set of static AVP payload types the
// codec answers to. New constructs a fresh, unstarted Codec instance.
type Factory struct {
	Name         string
	NameRegex    *regexp.Regexp
	BlockLength  int
	ClockRateHz  int
	Media        frame.Kind
	PayloadTypes map[int]bool
	New          func() Codec
}

// MatchesAVT reports whether n is one of this factory's static payload
// types.
func (fd *Factory) MatchesAVT(n int) bool {
	return fd.PayloadTypes[n]
}

// MatchesName reports whether s matches this factory's name regex.
func (fd *Factory) MatchesName(s string) bool {
	if fd.NameRegex == nil {
		return false
	}
	return fd.NameRegex.MatchString(s)
}

// baseCodec holds the settings/started-flag/payload-type bookkeeping
// shared by every concrete codec, mirroring the common attributes spec §3
// assigns to every Codec instance (media kind, format tag, clock rate,
// block length, name, started flag, settings map).
type baseCodec struct {
	name        string
	nameRegex   *regexp.Regexp
	clockRate   int
	blockLength int
	media       frame.Kind
	payloadType int
	payloadSet  map[int]bool
	started     bool
	settings    map[string]string
	collector   *frame.Collector
}

func newBaseCodec(name string, re *regexp.Regexp, clockRate, blockLength int, media frame.Kind, pt int, payloadSet map[int]bool) baseCodec {
	return baseCodec{
		name:        name,
		nameRegex:   re,
		clockRate:   clockRate,
		blockLength: blockLength,
		media:       media,
		payloadType: pt,
		payloadSet:  payloadSet,
		settings:    make(map[string]string),
	}
}

func (b *baseCodec) MatchesAVT(n int) bool { return b.payloadSet[n] }
func (b *baseCodec) MatchesName(s string) bool {
	if b.nameRegex == nil {
		return false
	}
	return b.nameRegex.MatchString(s)
}
func (b *baseCodec) AddSetting(key, value string) { b.settings[key] = value }
func (b *baseCodec) GetSetting(key string) (string, bool) {
	v, ok := b.settings[key]
	return v, ok
}
func (b *baseCodec) SetCollector(c *frame.Collector) { b.collector = c }
func (b *baseCodec) Name() string                    { return b.name }
func (b *baseCodec) ClockRate() int                  { return b.clockRate }
func (b *baseCodec) BlockLength() int                { return b.blockLength }
func (b *baseCodec) PayloadType() int                { return b.payloadType }
func (b *baseCodec) markStarted() error {
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true
	return nil
}

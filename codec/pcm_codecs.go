package codec

import (
	"encoding/binary"
	"regexp"

	"github.com/pgrabowski/mediactrl-sub001/frame"
)

// AudioSamplesPerFrame is the number of 16-bit linear samples in one
// 20ms/8kHz audio frame, per spec §4.2 ("160 bytes/frame" for the encoded
// PCMU/PCMA block, decoded from 160 linear samples).
const AudioSamplesPerFrame = 160

// RawBlockLength is the byte length of a raw (decoded) audio Frame's
// buffer: 160 little-endian int16 samples.
const RawBlockLength = AudioSamplesPerFrame * 2

func rawToSamples(buf []byte) ([]int16, bool) {
	if len(buf) != RawBlockLength {
		return nil, false
	}
	samples := make([]int16, AudioSamplesPerFrame)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples, true
}

func samplesToRaw(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// PCMU implements AVP 0 (G.711 mu-law), stateless companding between
// 16-bit linear samples and 8-bit companded bytes, one byte per sample in
// either direction, per spec §4.2. The companding is computed with the
// segment/bias arithmetic in g711.go rather than looked up in a table.
type PCMU struct{ baseCodec }

// NewPCMU constructs an unstarted PCMU codec instance.
func NewPCMU() Codec {
	return &PCMU{baseCodec: newBaseCodec("PCMU", regexp.MustCompile(`(?i)^pcmu$`), 8000, AudioSamplesPerFrame, frame.KindAudio, 0, map[int]bool{0: true})}
}

// Start marks the (stateless) codec as ready to encode/decode.
func (c *PCMU) Start() error { return c.markStarted() }

// Encode companded a raw Frame into an AVP-0 Frame.
func (c *PCMU) Encode(f *frame.Frame) *frame.Frame {
	if !c.started || f.Format != frame.FormatRaw {
		return nil
	}
	samples, ok := rawToSamples(f.Buffer)
	if !ok {
		return nil
	}
	out := make([]byte, AudioSamplesPerFrame)
	for i, s := range samples {
		out[i] = linearToULaw(s)
	}
	return frame.NewBuffered(c.collector, frame.KindAudio, out, frame.Format(c.payloadType))
}

// Decode expands an AVP-0 Frame back to raw linear samples.
func (c *PCMU) Decode(f *frame.Frame) *frame.Frame {
	if !c.started || len(f.Buffer) != AudioSamplesPerFrame {
		return nil
	}
	samples := make([]int16, AudioSamplesPerFrame)
	for i, b := range f.Buffer {
		samples[i] = uLawToLinear(b)
	}
	return frame.NewBuffered(c.collector, frame.KindAudio, samplesToRaw(samples), frame.FormatRaw)
}

// PCMA implements AVP 8 (G.711 A-law), the A-law counterpart to PCMU.
type PCMA struct{ baseCodec }

// NewPCMA constructs an unstarted PCMA codec instance.
func NewPCMA() Codec {
	return &PCMA{baseCodec: newBaseCodec("PCMA", regexp.MustCompile(`(?i)^pcma$`), 8000, AudioSamplesPerFrame, frame.KindAudio, 8, map[int]bool{8: true})}
}

// Start marks the (stateless) codec as ready to encode/decode.
func (c *PCMA) Start() error { return c.markStarted() }

// Encode companded a raw Frame into an AVP-8 Frame.
func (c *PCMA) Encode(f *frame.Frame) *frame.Frame {
	if !c.started || f.Format != frame.FormatRaw {
		return nil
	}
	samples, ok := rawToSamples(f.Buffer)
	if !ok {
		return nil
	}
	out := make([]byte, AudioSamplesPerFrame)
	for i, s := range samples {
		out[i] = linearToALaw(s)
	}
	return frame.NewBuffered(c.collector, frame.KindAudio, out, frame.Format(c.payloadType))
}

// Decode expands an AVP-8 Frame back to raw linear samples.
func (c *PCMA) Decode(f *frame.Frame) *frame.Frame {
	if !c.started || len(f.Buffer) != AudioSamplesPerFrame {
		return nil
	}
	samples := make([]int16, AudioSamplesPerFrame)
	for i, b := range f.Buffer {
		samples[i] = aLawToLinear(b)
	}
	return frame.NewBuffered(c.collector, frame.KindAudio, samplesToRaw(samples), frame.FormatRaw)
}

package frame

// Kind identifies the media carried by a Frame.
type Kind int

const (
	KindAudio Kind = iota
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Format tags a Frame's payload. FormatRaw means decoded linear samples;
// any non-negative value identifies the RTP AVP payload type the bytes are
// encoded as.
type Format int

const FormatRaw Format = -1

// Type discriminates a data-bearing Frame from one that also carries
// channel locking intent. Locking/unlocking frames are still transmitted
// as ordinary data once the lock-state side effect has been applied.
type Type int

const (
	TypeNormal Type = iota
	TypeLocking
	TypeUnlocking
)

// Flags carries resolution hints reserved for future video support (QCIF,
// CIF); audio frames leave this at FlagNone.
type Flags uint32

const (
	FlagNone Flags = 0
	FlagQCIF Flags = 1 << 0
	FlagCIF  Flags = 1 << 1
)

// OwnerID identifies the producer of a locking/unlocking Frame. Any
// comparable value works; callers typically use a pointer or a string
// token unique to the producing package-level connection.
type OwnerID = any

// audioTimestampStep is the default RTP tick advance for one 20ms, 8kHz
// audio frame (160 samples), matching MediaCtrlFrame's default `ts = 160`.
const audioTimestampStep = 160

// Frame is the unit of media moving through the engine: a typed byte
// buffer plus the metadata the RTP channel, codec registry, and endpoint
// hierarchy need to route, tempificate, and reassemble it.
//
// A Frame is never destroyed by the code that produces it. Every Frame
// constructed with a non-nil Collector is handed to that Collector, which
// alone decides when the Frame is no longer reachable.
type Frame struct {
	Media  Kind
	Format Format
	Buffer []byte
	Type   Type
	Flags  Flags

	// TimestampStep is how many RTP clock ticks this frame advances the
	// channel's outgoing timestamp by.
	TimestampStep uint32

	// Allocated reports whether Buffer is a copy owned by this Frame
	// (true for audio frames built via NewBuffered) as opposed to a
	// caller-owned slice referenced without copying.
	Allocated bool

	// TimeBorn is the frame's creation time, in microseconds since the
	// Unix epoch, matching the original implementation's
	// tv_sec*1000000+tv_usec convention.
	TimeBorn int64

	// Owner is set only on locking/unlocking frames, identifying which
	// producer is requesting (or releasing) the channel lock.
	Owner OwnerID

	// TransactionID correlates this frame back to the SIP dialog that
	// produced or is consuming it.
	TransactionID string

	// Appended holds fragments reassembled under the same marker-bit
	// boundary as this frame. Only the head frame of a burst carries a
	// non-empty Appended list.
	Appended []*Frame

	// Original back-links a decoded Frame to the encoded Frame it was
	// decoded from. It is an ordinary pointer, so the original Frame stays
	// reachable for as long as the decoded Frame does, whether or not the
	// Collector still holds it.
	Original *Frame
}

// New creates an empty Frame of the given media kind. If collector is
// non-nil the frame is registered with it immediately, matching the
// original constructor's behavior of enrolling every frame at birth.
func New(collector *Collector, kind Kind) *Frame {
	f := &Frame{Media: kind, Type: TypeNormal}
	if kind == KindAudio {
		f.TimestampStep = audioTimestampStep
	}
	f.bornNow(collector)
	return f
}

// NewBuffered creates a Frame that owns a copy of buf, tagged with format.
// Audio frames always copy their buffer, mirroring MediaCtrlFrame's
// setBuffer, which MCMALLOCs and memcpys the caller's bytes.
func NewBuffered(collector *Collector, kind Kind, buf []byte, format Format) *Frame {
	f := &Frame{Media: kind, Format: format, Type: TypeNormal}
	if kind == KindAudio {
		f.TimestampStep = audioTimestampStep
	}
	f.SetBuffer(buf)
	f.bornNow(collector)
	return f
}

func (f *Frame) bornNow(collector *Collector) {
	var tp TimeProvider = DefaultTimeProvider{}
	if collector != nil {
		tp = collector.timeProvider
	}
	f.TimeBorn = tp.Now().UnixMicro()
	if collector != nil {
		collector.register(f)
	}
}

// SetBuffer copies buf into the Frame's own backing array for audio
// frames. Non-audio frames reference buf without copying.
func (f *Frame) SetBuffer(buf []byte) {
	if f.Media == KindAudio {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		f.Buffer = cp
		f.Allocated = true
		return
	}
	f.Buffer = buf
}

// AppendFrame chains frame onto the receiver's Appended list. Only the
// head of a reassembled burst should ever have this called on it.
func (f *Frame) AppendFrame(child *Frame) {
	f.Appended = append(f.Appended, child)
}

// IsLocking reports whether this frame requests the channel lock.
func (f *Frame) IsLocking() bool { return f.Type == TypeLocking }

// IsUnlocking reports whether this frame releases the channel lock.
func (f *Frame) IsUnlocking() bool { return f.Type == TypeUnlocking }

// Len returns the number of bytes in the frame's buffer.
func (f *Frame) Len() int { return len(f.Buffer) }

package codec

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Registry enumerates available codec factories and binds them to
// negotiated RTP payload types or SDP encoding names, per spec §4.2.
type Registry struct {
	factories []*Factory
	log       *logrus.Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{log: logrus.WithField("package", "codec")}
}

// NewDefaultRegistry creates a Registry pre-populated with the three
// required audio codecs (PCMU, PCMA, GSM) plus the optional Opus plugin
// exercising the dynamic-PT/name-regex binding path.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Factory{
		Name: "PCMU", BlockLength: AudioSamplesPerFrame, ClockRateHz: 8000,
		PayloadTypes: map[int]bool{0: true}, New: NewPCMU,
	})
	r.Register(&Factory{
		Name: "PCMA", BlockLength: AudioSamplesPerFrame, ClockRateHz: 8000,
		PayloadTypes: map[int]bool{8: true}, New: NewPCMA,
	})
	r.Register(&Factory{
		Name: "GSM", BlockLength: gsmBlockLength, ClockRateHz: 8000,
		PayloadTypes: map[int]bool{3: true}, New: NewGSM,
	})
	r.Register(&Factory{
		Name: "opus", BlockLength: 0, ClockRateHz: 48000,
		PayloadTypes: map[int]bool{}, New: NewOpus,
	})
	return r
}

// Register adds a codec factory to the registry. If f.NameRegex is unset,
// a case-insensitive exact match on f.Name is compiled for it, so every
// registered factory is reachable through FactoryForName/CreateByName
// without each call site having to spell out its own regex.
func (r *Registry) Register(f *Factory) {
	if f.NameRegex == nil {
		f.NameRegex = regexp.MustCompile(fmt.Sprintf("(?i)^%s$", regexp.QuoteMeta(f.Name)))
	}
	r.factories = append(r.factories, f)
	r.log.WithField("codec", f.Name).Debug("codec factory registered")
}

// FactoryForPayloadType returns the factory whose static AVP set contains
// pt, if any.
func (r *Registry) FactoryForPayloadType(pt int) (*Factory, bool) {
	for _, f := range r.factories {
		if f.PayloadTypes[pt] {
			return f, true
		}
	}
	return nil, false
}

// FactoryForName returns the factory whose name regex matches name
// (typically an SDP rtpmap encoding name), if any.
func (r *Registry) FactoryForName(name string) (*Factory, bool) {
	for _, f := range r.factories {
		if f.NameRegex != nil && f.NameRegex.MatchString(name) {
			return f, true
		}
	}
	return nil, false
}

// Create instantiates and starts a codec bound to the given static AVP
// payload type. Returns ErrUnknownPayloadType if no factory matches.
func (r *Registry) Create(pt int) (Codec, error) {
	f, ok := r.FactoryForPayloadType(pt)
	if !ok {
		return nil, ErrUnknownPayloadType
	}
	c := f.New()
	if err := c.Start(); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"codec": f.Name, "payload_type": pt}).Info("codec instance created")
	return c, nil
}

// CreateByName instantiates and starts a codec matched by the SDP rtpmap
// encoding name rather than a static AVP number. dynamicPT is only
// recorded in the log: the returned codec keeps the payload type its
// constructor assigned (111 for opus), which is what PayloadType reports
// and what Encode tags its output with. Returns ErrUnknownPayloadType if
// no factory matches.
func (r *Registry) CreateByName(name string, dynamicPT int) (Codec, error) {
	f, ok := r.FactoryForName(name)
	if !ok {
		return nil, ErrUnknownPayloadType
	}
	c := f.New()
	if err := c.Start(); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"codec": f.Name, "payload_type": dynamicPT}).Info("codec instance created (dynamic PT)")
	return c, nil
}

package transport

// ProfileEntry describes one static or dynamic AVP payload-type binding
// known to the RTP profile at engine startup.
type ProfileEntry struct {
	PayloadType int
	Name        string
	ClockRateHz int
}

// Profile is the set of payload-type bindings every Session consults. It
// is built once and never mutated, per SPEC_FULL §6.1: the original
// implementation registers the dynamic telephone-event payload type into
// a single shared profile object at process startup, not per channel.
type Profile struct {
	entries map[int]ProfileEntry
}

// TelephoneEventPayloadType is the dynamic AVP payload type used for
// RFC 4733 telephone-event (DTMF) packets, installed in the profile at
// startup per spec §6.
const TelephoneEventPayloadType = 101

// DefaultProfile is the immutable, package-level RTP profile: the three
// static audio payload-type assignments plus telephone-event. It is
// constructed once at package init and referenced, never copied-and
// mutated, by every Session — the Go equivalent of the original's
// single shared oRTP profile object.
var DefaultProfile = newDefaultProfile()

func newDefaultProfile() *Profile {
	p := &Profile{entries: make(map[int]ProfileEntry)}
	p.entries[0] = ProfileEntry{PayloadType: 0, Name: "PCMU", ClockRateHz: 8000}
	p.entries[8] = ProfileEntry{PayloadType: 8, Name: "PCMA", ClockRateHz: 8000}
	p.entries[3] = ProfileEntry{PayloadType: 3, Name: "GSM", ClockRateHz: 8000}
	p.entries[TelephoneEventPayloadType] = ProfileEntry{PayloadType: TelephoneEventPayloadType, Name: "telephone-event", ClockRateHz: 8000}
	return p
}

// Lookup returns the profile entry for pt, if registered.
func (p *Profile) Lookup(pt int) (ProfileEntry, bool) {
	e, ok := p.entries[pt]
	return e, ok
}

// IsTelephoneEvent reports whether pt is the telephone-event payload type.
func (p *Profile) IsTelephoneEvent(pt int) bool {
	return pt == TelephoneEventPayloadType
}

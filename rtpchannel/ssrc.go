package rtpchannel

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// SSRCProvider abstracts SSRC generation so tests can inject deterministic
// values, following the corpus's TimeProvider/SSRCProvider injection idiom.
type SSRCProvider interface {
	GenerateSSRC() (uint32, error)
}

// DefaultSSRCProvider draws a cryptographically random SSRC, matching the
// teacher's DefaultSSRCProvider.
type DefaultSSRCProvider struct{}

func (DefaultSSRCProvider) GenerateSSRC() (uint32, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return 0, fmt.Errorf("rtpchannel: generate ssrc: %w", err)
	}
	return binary.BigEndian.Uint32(b), nil
}

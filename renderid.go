package isorender

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

// InstanceIDProvider returns a stable identifier for the current process,
// used to correlate render logs and to namespace snapshot identifiers.
type InstanceIDProvider interface {
	InstanceID() (string, error)
}

// DefaultInstanceIDProvider builds stable instance IDs from environment and
// host info.
type DefaultInstanceIDProvider struct {
	prefix    string
	addSuffix bool

	once sync.Once
	id   string
	err  error
}

// InstanceIDOption mutates DefaultInstanceIDProvider construction.
type InstanceIDOption func(*DefaultInstanceIDProvider)

// WithInstancePrefix adds a prefix to instance IDs (useful for clusters/regions).
func WithInstancePrefix(prefix string) InstanceIDOption {
	return func(p *DefaultInstanceIDProvider) {
		p.prefix = prefix
	}
}

// WithoutRandomSuffix disables the random suffix appended for uniqueness.
func WithoutRandomSuffix() InstanceIDOption {
	return func(p *DefaultInstanceIDProvider) {
		p.addSuffix = false
	}
}

// NewDefaultInstanceIDProvider constructs a provider using environment hints.
func NewDefaultInstanceIDProvider(opts ...InstanceIDOption) *DefaultInstanceIDProvider {
	p := &DefaultInstanceIDProvider{
		addSuffix: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InstanceID returns a stable ID for the process lifetime.
func (p *DefaultInstanceIDProvider) InstanceID() (string, error) {
	p.once.Do(func() {
		base := firstNonEmpty(
			os.Getenv("POD_UID"),
			os.Getenv("HOSTNAME"),
			readHostname(),
		)
		if base == "" {
			p.err = fmt.Errorf("no hostname or env var found for instance id")
			return
		}
		parts := []string{}
		if p.prefix != "" {
			parts = append(parts, p.prefix)
		}
		parts = append(parts, sanitizeID(base))
		if p.addSuffix {
			suffix, err := randomSuffix()
			if err != nil {
				p.err = err
				return
			}
			parts = append(parts, suffix)
		}
		p.id = strings.Join(parts, "-")
	})
	return p.id, p.err
}

// StaticInstanceID always returns the same ID (tests, single-node setups).
type StaticInstanceID string

// InstanceID implements InstanceIDProvider.
func (s StaticInstanceID) InstanceID() (string, error) { return string(s), nil }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func readHostname() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

func sanitizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}

func randomSuffix() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

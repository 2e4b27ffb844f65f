// Package identity maps raw chat-channel addresses to stable user keys.
//
// A raw address arrives in one of three forms: a canonical phone-derived
// address ("5511999999999@s.whatsapp.net"), an opaque session-scoped alias
// ("123456789@lid"), or a group address ("...@g.us"). Sessions must be keyed
// by the underlying endpoint, so both the canonical and alias forms of the
// same phone must resolve to the same UserKey. Aliases that the transport
// cannot map back are dropped rather than guessed: a wrong guess would attach
// one citizen's turn to another citizen's session.
package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"vozlocal/pkg/logx"
)

const (
	canonicalSuffix  = "@s.whatsapp.net"
	obfuscatedSuffix = "@lid"
	groupSuffix      = "@g.us"
)

// Resolution errors. Callers drop the event on any of these; none is
// surfaced to the user (fail-closed policy).
var (
	ErrGroupAddress   = errors.New("group addresses are not supported")
	ErrUnresolved     = errors.New("obfuscated address could not be resolved")
	ErrInvalidAddress = errors.New("address has no usable digits")
)

// ObfuscatedLookup is the transport capability for reverse-mapping an
// opaque alias to its canonical address. An empty result means unknown.
type ObfuscatedLookup interface {
	ResolveObfuscated(ctx context.Context, rawAddress string) (string, error)
}

// Identity is a resolved inbound address. Canonical is threaded through the
// rest of the turn so replies never re-resolve.
type Identity struct {
	UserKey   string // stable key, digits of the canonical address
	Canonical string // full canonical address for outbound sends
}

// Resolver resolves raw addresses to identities, caching successful alias
// lookups for the lifetime of the process.
type Resolver struct {
	lookup ObfuscatedLookup
	logger *logx.Logger

	mu         sync.Mutex
	aliasCache map[string]string // alias -> canonical
}

// NewResolver creates a resolver backed by the given transport lookup.
func NewResolver(lookup ObfuscatedLookup) *Resolver {
	return &Resolver{
		lookup:     lookup,
		logger:     logx.NewLogger("identity"),
		aliasCache: make(map[string]string),
	}
}

// Resolve maps a raw address to a stable Identity.
//
// Group addresses and unresolvable aliases return an error; the caller must
// drop the event without replying.
func (r *Resolver) Resolve(ctx context.Context, rawAddress string) (Identity, error) {
	addr := strings.TrimSpace(rawAddress)

	switch {
	case strings.HasSuffix(addr, groupSuffix):
		return Identity{}, ErrGroupAddress

	case strings.HasSuffix(addr, obfuscatedSuffix):
		canonical, err := r.resolveAlias(ctx, addr)
		if err != nil {
			return Identity{}, err
		}
		return identityFromCanonical(canonical)

	default:
		return identityFromCanonical(addr)
	}
}

func (r *Resolver) resolveAlias(ctx context.Context, alias string) (string, error) {
	r.mu.Lock()
	cached, ok := r.aliasCache[alias]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	canonical, err := r.lookup.ResolveObfuscated(ctx, alias)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	if canonical == "" {
		return "", ErrUnresolved
	}

	r.mu.Lock()
	r.aliasCache[alias] = canonical
	r.mu.Unlock()

	r.logger.Debug("resolved alias %s -> %s...", alias, canonical[:min(8, len(canonical))])
	return canonical, nil
}

// identityFromCanonical normalizes a canonical-form address: the transport
// suffix is stripped and only digits are kept, so decorated variants of the
// same phone ("+55 11 99999-9999") collapse to one key.
func identityFromCanonical(addr string) (Identity, error) {
	bare := strings.TrimSuffix(addr, canonicalSuffix)

	var digits strings.Builder
	for _, c := range bare {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return Identity{}, ErrInvalidAddress
	}

	key := digits.String()
	return Identity{
		UserKey:   key,
		Canonical: key + canonicalSuffix,
	}, nil
}

// HashKey derives the one-way persisted form of a user key. Raw keys never
// reach storage.
func HashKey(userKey string) string {
	sum := sha3.Sum256([]byte(userKey))
	return hex.EncodeToString(sum[:])
}

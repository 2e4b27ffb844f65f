package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	aliases map[string]string
	err     error
	calls   int
}

func (f *fakeLookup) ResolveObfuscated(_ context.Context, raw string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.aliases[raw], nil
}

func TestResolveCanonicalAddress(t *testing.T) {
	r := NewResolver(&fakeLookup{})

	id, err := r.Resolve(context.Background(), "5511999999999@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", id.UserKey)
	assert.Equal(t, "5511999999999@s.whatsapp.net", id.Canonical)
}

func TestResolveStripsDecorations(t *testing.T) {
	r := NewResolver(&fakeLookup{})

	plain, err := r.Resolve(context.Background(), "5511999999999@s.whatsapp.net")
	require.NoError(t, err)
	decorated, err := r.Resolve(context.Background(), "+55 (11) 99999-9999")
	require.NoError(t, err)

	assert.Equal(t, plain.UserKey, decorated.UserKey)
}

func TestResolveAliasMatchesCanonical(t *testing.T) {
	lookup := &fakeLookup{aliases: map[string]string{
		"987654321@lid": "5511999999999@s.whatsapp.net",
	}}
	r := NewResolver(lookup)

	viaCanonical, err := r.Resolve(context.Background(), "5511999999999@s.whatsapp.net")
	require.NoError(t, err)
	viaAlias, err := r.Resolve(context.Background(), "987654321@lid")
	require.NoError(t, err)

	// Same endpoint, same key, regardless of which form arrived.
	assert.Equal(t, viaCanonical.UserKey, viaAlias.UserKey)
	assert.Equal(t, viaCanonical.Canonical, viaAlias.Canonical)
}

func TestResolveAliasCached(t *testing.T) {
	lookup := &fakeLookup{aliases: map[string]string{
		"987654321@lid": "5511999999999@s.whatsapp.net",
	}}
	r := NewResolver(lookup)

	_, err := r.Resolve(context.Background(), "987654321@lid")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "987654321@lid")
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.calls)
}

func TestResolveUnknownAliasFailsClosed(t *testing.T) {
	r := NewResolver(&fakeLookup{})

	_, err := r.Resolve(context.Background(), "987654321@lid")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveLookupErrorFailsClosed(t *testing.T) {
	r := NewResolver(&fakeLookup{err: errors.New("transport down")})

	_, err := r.Resolve(context.Background(), "987654321@lid")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveRejectsGroupAddresses(t *testing.T) {
	r := NewResolver(&fakeLookup{})

	_, err := r.Resolve(context.Background(), "120363041234567890@g.us")
	assert.ErrorIs(t, err, ErrGroupAddress)
}

func TestResolveRejectsDigitlessAddress(t *testing.T) {
	r := NewResolver(&fakeLookup{})

	_, err := r.Resolve(context.Background(), "not-a-number@s.whatsapp.net")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestHashKey(t *testing.T) {
	hash := HashKey("5511999999999")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashKey("5511999999999"))
	assert.NotEqual(t, hash, HashKey("5511999999998"))
	assert.NotContains(t, hash, "5511999999999")
}

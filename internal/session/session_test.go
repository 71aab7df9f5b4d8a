package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	signedIn := &AuthSession{UserID: "user_42", Email: "a@b.c"}

	tests := []struct {
		name      string
		guestMode bool
		session   *AuthSession
		wantKind  Kind
		wantID    string
	}{
		{"signed out", false, nil, Unauthenticated, ""},
		{"blank user id", false, &AuthSession{UserID: "  "}, Unauthenticated, ""},
		{"signed in", false, signedIn, Authenticated, "user_42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewResolver(tt.guestMode, "seed").Resolve(tt.session)
			assert.Equal(t, tt.wantKind, id.Kind)
			assert.Equal(t, tt.wantID, id.UserID)
		})
	}
}

func TestGuestModeIgnoresRealSession(t *testing.T) {
	r := NewResolver(true, "seed")

	withSession := r.Resolve(&AuthSession{UserID: "user_42"})
	without := r.Resolve(nil)

	assert.Equal(t, Guest, withSession.Kind)
	assert.Equal(t, withSession, without)
	assert.True(t, withSession.CanConnect())
	assert.False(t, withSession.NeedsSignIn())

	// Deterministic across resolvers with the same seed.
	assert.Equal(t, without, NewResolver(true, "seed").Resolve(nil))
	assert.NotEqual(t, without.UserID, NewResolver(true, "other").Resolve(nil).UserID)
}

func TestCanConnect(t *testing.T) {
	assert.False(t, Identity{Kind: Unauthenticated}.CanConnect())
	assert.False(t, Identity{Kind: Authenticated}.CanConnect(), "no user id")
	assert.True(t, Identity{Kind: Authenticated, UserID: "u"}.CanConnect())
	assert.True(t, Identity{Kind: Unauthenticated}.NeedsSignIn())
}

func TestLoad(t *testing.T) {
	store := map[string]string{"uid": "user_1", "mail": "x@y.z"}
	get := func(key string) (string, error) {
		v, ok := store[key]
		if !ok {
			return "", errors.New("missing")
		}
		return v, nil
	}

	s := Load(get, "uid", "mail")
	require.NotNil(t, s)
	assert.Equal(t, AuthSession{UserID: "user_1", Email: "x@y.z"}, *s)

	delete(store, "mail")
	s = Load(get, "uid", "mail")
	require.NotNil(t, s)
	assert.Empty(t, s.Email)

	delete(store, "uid")
	assert.Nil(t, Load(get, "uid", "mail"))
}

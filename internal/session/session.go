// Package session folds guest mode, a signed-in user and no user at all
// into one identity shape for the rest of the application.
package session

import (
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes how an identity was obtained.
type Kind int

const (
	Unauthenticated Kind = iota
	Guest
	Authenticated
)

func (k Kind) String() string {
	switch k {
	case Guest:
		return "guest"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Identity is the effective user for privileged actions. UserID is empty
// for Unauthenticated.
type Identity struct {
	UserID string
	Kind   Kind
}

// CanConnect reports whether the identity may start account linking.
// Guests can; the signed-out user cannot.
func (id Identity) CanConnect() bool {
	return id.Kind != Unauthenticated && id.UserID != ""
}

// NeedsSignIn reports whether the UI should prompt the user to sign in.
func (id Identity) NeedsSignIn() bool {
	return id.Kind == Unauthenticated
}

// AuthSession is a signed-in user. A nil *AuthSession means signed out.
type AuthSession struct {
	UserID string
	Email  string
}

// guestNamespace scopes synthesized guest ids.
var guestNamespace = uuid.MustParse("6f1c3a52-7f53-4b7e-9a0e-6f0d3f5b2c11")

// Resolver computes the effective identity. The guest flag is fixed at
// construction.
type Resolver struct {
	guestMode bool
	guest     Identity
}

// NewResolver returns a Resolver. In guest mode every Resolve returns the
// same synthesized guest, derived from seed.
func NewResolver(guestMode bool, seed string) *Resolver {
	return &Resolver{
		guestMode: guestMode,
		guest: Identity{
			UserID: "guest-" + uuid.NewSHA1(guestNamespace, []byte(seed)).String(),
			Kind:   Guest,
		},
	}
}

// GuestMode reports whether the resolver ignores real sessions.
func (r *Resolver) GuestMode() bool { return r.guestMode }

// Resolve maps a possibly nil session to an Identity.
func (r *Resolver) Resolve(s *AuthSession) Identity {
	if r.guestMode {
		return r.guest
	}
	if s == nil || strings.TrimSpace(s.UserID) == "" {
		return Identity{Kind: Unauthenticated}
	}
	return Identity{UserID: s.UserID, Kind: Authenticated}
}

// SecretGetter reads a stored secret; credential.Get satisfies it.
type SecretGetter func(key string) (string, error)

// Load reads the stored sign-in from userKey and emailKey. It returns nil
// when nothing usable is stored, which Resolve treats as signed out.
func Load(get SecretGetter, userKey, emailKey string) *AuthSession {
	userID, err := get(userKey)
	if err != nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	email, _ := get(emailKey)
	return &AuthSession{UserID: userID, Email: email}
}

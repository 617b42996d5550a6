// Package ports defines the contracts for the two opaque external
// collaborators: the identity provider and the profile store. The
// session manager depends on these interfaces only, so tests construct
// it against fakes.
package ports

import (
	"context"

	"github.com/vinayh/lifecal-web/domain/profile"
)

// AuthMethod selects a sign-in mechanism.
type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "emailPassword"
	AuthMethodGitHub   AuthMethod = "github"
	AuthMethodGoogle   AuthMethod = "google"
)

// Credentials carries sign-in input. Password methods use Email and
// Password; OAuth methods use Assertion (the provider's ID token or
// access token obtained out of band).
type Credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Assertion string `json:"assertion"`
}

// Identity is the authenticated-session handle observed from the
// identity provider. It is created and destroyed entirely by the
// provider; the application only reads it.
type Identity struct {
	UID   string
	Email string
}

// AuthProvider is the external identity provider. Implementations must
// invoke registered observers on every identity transition, including
// immediately upon registration with the current identity (which may be
// nil).
type AuthProvider interface {
	// SignInWithPassword authenticates with email and password.
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)

	// SignInWithOAuth authenticates via a named OAuth provider using an
	// assertion obtained from it.
	SignInWithOAuth(ctx context.Context, provider string, assertion string) (*Identity, error)

	// SignOut terminates the provider session.
	SignOut(ctx context.Context) error

	// Token mints a bearer token for the current identity, optionally
	// forcing a refresh.
	Token(ctx context.Context, forceRefresh bool) (string, error)

	// OnIdentityChanged registers an observer and returns an
	// unsubscribe function.
	OnIdentityChanged(fn func(*Identity)) (unsubscribe func())
}

// ProfileStore is the external profile CRUD API. All calls bear the uid
// and a bearer token.
type ProfileStore interface {
	// GetUser fetches the profile document with its entries and tags.
	// A nil payload with nil error means no document exists yet.
	GetUser(ctx context.Context, uid, idToken string) (*profile.Payload, error)

	// UpdateUserProfile writes the profile fields.
	UpdateUserProfile(ctx context.Context, uid, idToken string, form profile.FormData) error

	// AddUpdateEntry upserts the entry for one week bucket and returns
	// the updated entries collection.
	AddUpdateEntry(ctx context.Context, uid, idToken string, entry profile.Entry) ([]profile.Entry, error)
}

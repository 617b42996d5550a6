// Package session defines the session state machine vocabulary: the
// single tagged state, the immutable snapshot handed to consumers, and
// the cache freshness policy. The state is deliberately one enum rather
// than a set of independent booleans so that impossible combinations
// ("signed in" + "no profile" + "not loading") cannot be represented.
package session

import (
	"time"

	"github.com/vinayh/lifecal-web/domain/profile"
)

// State is the canonical session/profile state.
type State int

const (
	// NoSession is the initial state and the terminal state for logged
	// out users.
	NoSession State = iota
	// AuthInFlight means a sign-in or sign-out request has been issued
	// and the identity provider has not yet answered.
	AuthInFlight
	// ProfileLoading means the identity is resolved and a profile fetch
	// is in flight.
	ProfileLoading
	// ProfileAbsent means the fetch completed and no record exists yet,
	// or the fetch failed and the error is surfaced alongside.
	ProfileAbsent
	// ProfileIncomplete means a record was fetched but required fields
	// are missing.
	ProfileIncomplete
	// ProfileInvalid means the fetched record fails validation. This is
	// terminal; retrying a structurally broken stored record cannot
	// succeed without server-side correction.
	ProfileInvalid
	// ProfileComplete is the steady state; the calendar is usable.
	ProfileComplete
	// ProfileUpdating means a profile or entry write is in flight. The
	// previous data is preserved and re-entrant writes are refused.
	ProfileUpdating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NoSession:
		return "NoSession"
	case AuthInFlight:
		return "AuthInFlight"
	case ProfileLoading:
		return "ProfileLoading"
	case ProfileAbsent:
		return "ProfileAbsent"
	case ProfileIncomplete:
		return "ProfileIncomplete"
	case ProfileInvalid:
		return "ProfileInvalid"
	case ProfileComplete:
		return "ProfileComplete"
	case ProfileUpdating:
		return "ProfileUpdating"
	default:
		return "Unknown"
	}
}

// States lists every defined state, in declaration order.
func States() []State {
	return []State{
		NoSession, AuthInFlight, ProfileLoading, ProfileAbsent,
		ProfileIncomplete, ProfileInvalid, ProfileComplete, ProfileUpdating,
	}
}

// Snapshot is the derived, immutable view published to consumers. It is
// recomputed whenever any input changes; holders must treat it as a
// value and never mutate the maps it carries.
type Snapshot struct {
	State    State
	UID      string
	Record   *profile.Record
	Kind     profile.Kind
	Entries  map[string]profile.Entry
	Tags     []profile.Tag
	ErrorMsg string
	TakenAt  time.Time
}

// Authenticated reports whether an identity is present.
func (s Snapshot) Authenticated() bool {
	return s.State != NoSession && s.State != AuthInFlight
}

// AuthInFlight reports whether a sign-in/sign-out is pending.
func (s Snapshot) AuthInFlight() bool {
	return s.State == AuthInFlight
}

// ProfileInFlight reports whether a profile read or write is pending.
func (s Snapshot) ProfileInFlight() bool {
	return s.State == ProfileLoading || s.State == ProfileUpdating
}

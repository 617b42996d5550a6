// Package routing maps a session snapshot and a requested path to a
// single defined outcome. The mapping is total: every state and path
// combination resolves to something, so no screen can ever render
// nothing.
package routing

import (
	"github.com/vinayh/lifecal-web/domain/session"
)

// Known paths.
const (
	PathHome     = "/"
	PathLogin    = "/login"
	PathProfile  = "/profile"
	PathCalendar = "/calendar"
)

// Outcome says what the UI should do with the requested path. The zero
// value is deliberately not a valid outcome.
type Outcome int

const (
	outcomeUndefined Outcome = iota
	// OutcomeRender shows the requested path.
	OutcomeRender
	// OutcomeRedirect navigates to Decision.Target instead.
	OutcomeRedirect
	// OutcomeLoading shows a loading placeholder, with no redirect, to
	// avoid flicker while a fetch or write settles.
	OutcomeLoading
	// OutcomeError shows the persistent invalid-profile error view.
	OutcomeError
	// OutcomeNotFound shows the not-found view.
	OutcomeNotFound
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeLoading:
		return "loading"
	case OutcomeError:
		return "error"
	case OutcomeNotFound:
		return "notFound"
	default:
		return "undefined"
	}
}

// Decision is the routing verdict. Target is set for redirects.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
}

func render() Decision            { return Decision{Outcome: OutcomeRender} }
func redirect(to string) Decision { return Decision{Outcome: OutcomeRedirect, Target: to} }

// Decide resolves the allowed screen for a snapshot and requested path.
func Decide(snap session.Snapshot, path string) Decision {
	switch path {
	case PathHome, PathLogin, PathProfile, PathCalendar:
	default:
		return Decision{Outcome: OutcomeNotFound}
	}

	switch snap.State {
	case session.NoSession, session.AuthInFlight:
		// Private paths require a session.
		if path == PathProfile || path == PathCalendar {
			return redirect(PathLogin)
		}
		return render()

	case session.ProfileLoading, session.ProfileUpdating:
		return Decision{Outcome: OutcomeLoading}

	case session.ProfileInvalid:
		if path == PathHome {
			return render()
		}
		return Decision{Outcome: OutcomeError}

	case session.ProfileAbsent, session.ProfileIncomplete:
		// The profile must be completed before the calendar opens, and
		// an authenticated user has no business on the login screen.
		switch path {
		case PathCalendar, PathLogin:
			return redirect(PathProfile)
		default:
			return render()
		}

	case session.ProfileComplete:
		if path == PathLogin {
			return redirect(PathCalendar)
		}
		return render()

	default:
		// Unknown states fail closed rather than rendering nothing.
		return redirect(PathLogin)
	}
}

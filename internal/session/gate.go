package session

// Access classifies a route by who may see it.
type Access int

const (
	// Public routes render for everyone.
	Public Access = iota
	// Protected routes need an authenticated session.
	Protected
	// PublicOnly routes (login, register) are for signed-out users.
	PublicOnly
)

type Decision int

const (
	// Defer means the session is still loading and nothing may render yet.
	Defer Decision = iota
	Allow
	RedirectLogin
	RedirectDashboard
)

func (d Decision) String() string {
	switch d {
	case Defer:
		return "defer"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	default:
		return "unknown"
	}
}

// Gate decides whether a route with the given access may render for s.
func Gate(s State, access Access) Decision {
	if s.Loading || s.Phase == PhaseInitializing {
		return Defer
	}

	switch access {
	case Protected:
		if !s.IsAuthenticated {
			return RedirectLogin
		}
	case PublicOnly:
		if s.IsAuthenticated {
			return RedirectDashboard
		}
	}

	return Allow
}

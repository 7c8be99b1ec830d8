package session

import (
	"go-fintrack/internal/event"
	"go-fintrack/internal/model"
)

type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is what the view layer renders from. It is derived on every start and
// never persisted.
type State struct {
	User            *model.UserProfile `json:"user"`
	Loading         bool               `json:"loading"`
	IsAuthenticated bool               `json:"is_authenticated"`
	Phase           Phase              `json:"phase"`
}

func initializingState() State {
	return State{Loading: true, Phase: PhaseInitializing}
}

func anonymousState() State {
	return State{Phase: PhaseAnonymous}
}

// authenticatedState copies user so later changes to the caller's value never
// leak into the session.
func authenticatedState(user model.UserProfile) State {
	return State{User: &user, IsAuthenticated: true, Phase: PhaseAuthenticated}
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// StateFrom extracts the session state carried by a session event.
func StateFrom(e event.Event) (State, bool) {
	s, ok := e.Payload.(State)
	if !ok {
		return State{}, false
	}
	return s.clone(), true
}

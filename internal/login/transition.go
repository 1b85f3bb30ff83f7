package login

import (
	"errors"
	"fmt"
)

// ErrUnreachableState is raised when a snapshot names a state outside the enumerated set.
var ErrUnreachableState = errors.New("reached an unreachable state")

// UnknownErrorMessage is recorded for failures that carry neither a string nor an error.
const UnknownErrorMessage = "Unknown error"

// ErrorMessage normalizes a failure value to a display message.
//
// Strings pass through, errors contribute their message, and anything else becomes [UnknownErrorMessage].
func ErrorMessage(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case error:
		return e.Error()
	}
	return UnknownErrorMessage
}

// Unreachable panics with [ErrUnreachableState] for state s.
//
// Observers that switch over [StateID] call it from their default branch.
func Unreachable(s StateID) {
	panic(fmt.Errorf("%w: %q", ErrUnreachableState, s))
}

// Transition computes the next snapshot and the effects of delivering e in s.
//
// An event the current state does not handle returns s unchanged with no effects.
func Transition(s Snapshot, e Event) (Snapshot, []Effect) {
	next, effects, _ := step(s, e)
	return next, effects
}

// step is [Transition] with a flag telling whether e was handled.
func step(s Snapshot, e Event) (Snapshot, []Effect, bool) {
	if !s.State.Known() || s.State == NeedsSignup {
		Unreachable(s.State)
	}

	next := s
	switch s.State {
	case Idle:
		if _, ok := e.(TryAuth); ok {
			return enter(next, Authenticating, nil)
		}

	case Failure:
		if _, ok := e.(TryAuth); ok {
			next.Context.LastError = ""
			return enter(next, Authenticating, nil)
		}

	case Authenticating:
		switch ev := e.(type) {
		case SignedIn:
			next.Context.Identity = ev.Identity
			return enter(next, CheckingUser, nil)
		case ActionFailed:
			if ev.Action == ActionSignIn {
				return fail(next, ev, Failure)
			}
		}

	case CheckingUser:
		switch ev := e.(type) {
		case UserChecked:
			if ev.User == nil {
				return enter(next, NeedsSignup, nil)
			}
			return enter(next, CreatingSession, nil, PublishUser{User: ev.User})
		case ActionFailed:
			if ev.Action == ActionLookupUser {
				return fail(next, ev, Failure)
			}
		}

	case GetYoutubeChannel:
		switch ev := e.(type) {
		case ChannelFetched:
			next.Context.Channel = ev.Channel
			return enter(next, SelectRole, nil)
		case ActionFailed:
			if ev.Action == ActionFetchChannel {
				return fail(next, ev, CannotSignup)
			}
		}

	case SelectRole:
		if ev, ok := e.(Signup); ok {
			return enter(next, SigningUp, &ev)
		}

	case SigningUp:
		switch ev := e.(type) {
		case SignedUp:
			return enter(next, CreatingSession, nil, PublishUser{User: ev.User})
		case ActionFailed:
			if ev.Action == ActionRegisterUser {
				return fail(next, ev, Failure)
			}
		}

	case CreatingSession:
		switch ev := e.(type) {
		case SessionCreated:
			return enter(next, UpdateYoutube, nil)
		case ActionFailed:
			if ev.Action == ActionCreateSession {
				return fail(next, ev, Failure)
			}
		}

	case UpdateYoutube:
		switch ev := e.(type) {
		case ChannelLinked:
			return enter(next, Authenticated, nil, PublishChannel{Channel: ev.Channel})
		case ActionFailed:
			if ev.Action == ActionUpdateChannel {
				return fail(next, ev, Warning)
			}
		}

	case Warning:
		if _, ok := e.(WarningElapsed); ok {
			return enter(next, Authenticated, nil)
		}

	case CannotSignup, Authenticated:
	}

	return s, nil, false
}

// fail records the failure message and enters target.
func fail(s Snapshot, ev ActionFailed, target StateID) (Snapshot, []Effect, bool) {
	s.Context.LastError = ErrorMessage(ev.Err)
	return enter(s, target, nil)
}

// enter moves s into target, resolving composite states to their initial child, and appends the
// entry effects of the target to the transition's own effects.
func enter(s Snapshot, target StateID, signup *Signup, effects ...Effect) (Snapshot, []Effect, bool) {
	if initial := states[target].initial; initial != "" {
		target = initial
	}
	s.State = target

	if action := states[target].invokes; action != "" {
		inv := Invoke{Action: action, Identity: s.Context.Identity}
		switch action {
		case ActionRegisterUser:
			if signup != nil {
				inv.Form = signup.Form
			}
		case ActionUpdateChannel:
			inv.Channel = s.Context.Channel
		}
		effects = append(effects, inv)
	}

	switch target {
	case Warning:
		effects = append(effects, StartTimer{Delay: WarningDelay, Event: WarningElapsed{}})
	case Authenticated:
		effects = append(effects, Redirect{})
	}

	return s, effects, true
}

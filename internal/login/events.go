package login

import (
	"time"

	"github.com/desertthunder/eventory/internal/models"
)

// Action names an asynchronous capability invoked by a state.
type Action string

const (
	ActionSignIn        Action = "signIn"
	ActionLookupUser    Action = "lookupUser"
	ActionFetchChannel  Action = "fetchChannel"
	ActionRegisterUser  Action = "registerUser"
	ActionCreateSession Action = "createSession"
	ActionUpdateChannel Action = "updateChannel"
)

// Event is an input to [Transition].
//
// [TryAuth] and [Signup] come from the user. The remaining events are settlements of invoked actions
// and timers; a [Machine] only accepts them from its own invocations.
type Event interface {
	Type() string
}

// settlement marks events produced by invoked actions and timers.
type settlement interface {
	Event
	settles()
}

// TryAuth starts or retries authentication.
type TryAuth struct{}

// Signup submits the role selection.
type Signup struct {
	Form models.SignupForm
}

// SignedIn settles [ActionSignIn].
type SignedIn struct {
	Identity *models.Identity
}

// UserChecked settles [ActionLookupUser]. A nil User means no record exists.
type UserChecked struct {
	User *models.User
}

// ChannelFetched settles [ActionFetchChannel].
type ChannelFetched struct {
	Channel *models.Channel
}

// SignedUp settles [ActionRegisterUser].
type SignedUp struct {
	User *models.User
}

// SessionCreated settles [ActionCreateSession].
type SessionCreated struct{}

// ChannelLinked settles [ActionUpdateChannel].
type ChannelLinked struct {
	Channel *models.Channel
}

// ActionFailed reports that Action failed with Err, which may be any value.
type ActionFailed struct {
	Action Action
	Err    any
}

// WarningElapsed fires when [WarningDelay] has passed in [Warning].
type WarningElapsed struct{}

func (TryAuth) Type() string { return "TRY_AUTH" }
func (Signup) Type() string { return "SIGNUP" }
func (SignedIn) Type() string { return "done." + string(ActionSignIn) }
func (UserChecked) Type() string { return "done." + string(ActionLookupUser) }
func (ChannelFetched) Type() string { return "done." + string(ActionFetchChannel) }
func (SignedUp) Type() string { return "done." + string(ActionRegisterUser) }
func (SessionCreated) Type() string { return "done." + string(ActionCreateSession) }
func (ChannelLinked) Type() string { return "done." + string(ActionUpdateChannel) }
func (e ActionFailed) Type() string { return "error." + string(e.Action) }
func (WarningElapsed) Type() string { return "after.warning" }

func (SignedIn) settles() {}
func (UserChecked) settles() {}
func (ChannelFetched) settles() {}
func (SignedUp) settles() {}
func (SessionCreated) settles() {}
func (ChannelLinked) settles() {}
func (ActionFailed) settles() {}
func (WarningElapsed) settles() {}

// Effect is work requested by a transition and carried out by the interpreter.
type Effect interface {
	effect()
}

// Invoke starts Action with inputs taken from the context (and, for registration, the submitted form).
type Invoke struct {
	Action   Action
	Identity *models.Identity
	Channel  *models.Channel
	Form     models.SignupForm
}

// PublishUser hands a user record to the host application.
type PublishUser struct {
	User *models.User
}

// PublishChannel hands a linked channel to the host application.
type PublishChannel struct {
	Channel *models.Channel
}

// Redirect sends the user to the destination they originally asked for.
type Redirect struct{}

// StartTimer delivers Event after Delay.
type StartTimer struct {
	Delay time.Duration
	Event Event
}

func (Invoke) effect() {}
func (PublishUser) effect() {}
func (PublishChannel) effect() {}
func (Redirect) effect() {}
func (StartTimer) effect() {}

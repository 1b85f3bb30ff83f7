package login

import (
	"time"

	"github.com/desertthunder/eventory/internal/models"
)

// StateID names a state of the login flow. Child states of [NeedsSignup] are prefixed with "needsSignup.".
type StateID string

const (
	Idle              StateID = "idle"
	Authenticating    StateID = "authenticating"
	CheckingUser      StateID = "checkingUser"
	NeedsSignup       StateID = "needsSignup"
	GetYoutubeChannel StateID = "needsSignup.getYoutubeChannel"
	SelectRole        StateID = "needsSignup.selectRole"
	SigningUp         StateID = "needsSignup.signingUp"
	CannotSignup      StateID = "needsSignup.cannotSignup"
	CreatingSession   StateID = "creatingSession"
	UpdateYoutube     StateID = "updateYoutube"
	Warning           StateID = "warning"
	Failure           StateID = "failure"
	Authenticated     StateID = "authenticated"
)

// WarningDelay is how long [Warning] is shown before the flow completes.
const WarningDelay = 2000 * time.Millisecond

type stateDef struct {
	parent  StateID
	initial StateID
	invokes Action
	final   bool
}

var states = map[StateID]stateDef{
	Idle:              {},
	Authenticating:    {invokes: ActionSignIn},
	CheckingUser:      {invokes: ActionLookupUser},
	NeedsSignup:       {initial: GetYoutubeChannel},
	GetYoutubeChannel: {parent: NeedsSignup, invokes: ActionFetchChannel},
	SelectRole:        {parent: NeedsSignup},
	SigningUp:         {parent: NeedsSignup, invokes: ActionRegisterUser},
	CannotSignup:      {parent: NeedsSignup},
	CreatingSession:   {invokes: ActionCreateSession},
	UpdateYoutube:     {invokes: ActionUpdateChannel},
	Warning:           {},
	Failure:           {},
	Authenticated:     {final: true},
}

// States lists every state a snapshot can be in, in flow order. The composite [NeedsSignup] is not included.
var States = []StateID{
	Idle, Authenticating, CheckingUser,
	GetYoutubeChannel, SelectRole, SigningUp, CannotSignup,
	CreatingSession, UpdateYoutube, Warning, Failure, Authenticated,
}

func (s StateID) String() string { return string(s) }

// Known reports whether s is one of the enumerated states.
func (s StateID) Known() bool {
	_, ok := states[s]
	return ok
}

// Parent returns the composite state containing s, or "" for top-level states.
func (s StateID) Parent() StateID { return states[s].parent }

// Final reports whether s is terminal.
func (s StateID) Final() bool { return states[s].final }

// Context is the memory carried across transitions.
//
// LastError is empty when no failure has been recorded.
type Context struct {
	Identity  *models.Identity
	LastError string
	Channel   *models.Channel
}

// Snapshot is the observable state of the flow.
type Snapshot struct {
	State   StateID
	Context Context
}

// Initial returns the snapshot a new flow starts from.
func Initial() Snapshot {
	return Snapshot{State: Idle}
}

// Matches reports whether the snapshot is in state id or in a child of id.
func (s Snapshot) Matches(id StateID) bool {
	return s.State == id || (s.State.Parent() != "" && s.State.Parent() == id)
}

// Done reports whether the flow reached its terminal state.
func (s Snapshot) Done() bool { return s.State.Final() }

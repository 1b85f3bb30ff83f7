// Package login implements the authentication and signup flow as an explicit finite-state machine.
//
// # States
//
// The flow starts in [Idle] and ends in [Authenticated]. A returning user passes through
// [Authenticating], [CheckingUser], [CreatingSession] and [UpdateYoutube]. A user without a record
// detours through the [NeedsSignup] states, which fetch the user's YouTube channel and wait for a
// role selection before creating the record. Failures of invoked actions land in [Failure], which
// accepts a retry, or in [CannotSignup] when the channel cannot be fetched. A failed channel link
// is not fatal: [Warning] advances to [Authenticated] after [WarningDelay].
//
// # Transition and interpreter
//
// [Transition] is a pure function from a [Snapshot] and an [Event] to the next snapshot and a list of
// [Effect] values. It performs no I/O. Events a state does not handle leave the snapshot untouched.
//
// [Machine] interprets effects: it invokes the injected [Capabilities], arms timers on a [Clock], and
// delivers [Hooks] callbacks in order on a dedicated goroutine. Every invoked action carries a
// generation token. Settlements whose token is no longer current (because the machine moved on or
// was stopped) are dropped, so a late response never rewrites the context of an abandoned flow.
//
// # Errors
//
// Action failures are stored as display messages produced by [ErrorMessage]. A snapshot naming a
// state outside the enumerated set is a programming error and panics with [ErrUnreachableState].
package login

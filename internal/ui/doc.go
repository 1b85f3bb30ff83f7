// Package ui hosts the login flow in an interactive terminal interface using bubbletea's Elm architecture.
//
// [LoginModel] renders each [login.Snapshot] the machine publishes:
//  1. Idle and Failure : prompt to sign in (or retry) with Google
//  2. Pending actions : a spinner naming the step in progress
//  3. SelectRole : a role list that submits the signup form
//  4. Warning : the channel update failure, shown until the flow completes
//  5. Authenticated : the signed-in account and the redirect destination
//
// Machine hooks run outside the bubbletea event loop, so [Hooks] forwards them to the program as [Msg] values.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

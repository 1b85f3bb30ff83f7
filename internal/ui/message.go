package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/eventory/internal/login"
	"github.com/desertthunder/eventory/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSnapshot MsgKind = iota
	MsgUserPublished
	MsgChannelPublished
	MsgRedirect
)

// Kind reports which member of the union m is.
func (m Msg) Kind() MsgKind { return m.kind }

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(s login.Snapshot) Msg {
	return Msg{kind: MsgSnapshot, data: s}
}

// userPublishedMsg is the constructor for [MsgUserPublished]
func userPublishedMsg(u *models.User) Msg {
	return Msg{kind: MsgUserPublished, data: u}
}

// channelPublishedMsg is the constructor for [MsgChannelPublished]
func channelPublishedMsg(c *models.Channel) Msg {
	return Msg{kind: MsgChannelPublished, data: c}
}

// redirectMsg is the constructor for [MsgRedirect]
func redirectMsg(target string) Msg {
	return Msg{kind: MsgRedirect, data: target}
}

// Hooks forwards every machine callback to send, typically [tea.Program.Send].
func Hooks(send func(tea.Msg)) login.Hooks {
	return login.Hooks{
		OnChange:       func(s login.Snapshot) { send(snapshotMsg(s)) },
		PublishUser:    func(u *models.User) { send(userPublishedMsg(u)) },
		PublishChannel: func(c *models.Channel) { send(channelPublishedMsg(c)) },
		Redirect:       func(target string) { send(redirectMsg(target)) },
	}
}

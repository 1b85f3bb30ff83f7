package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/eventory/internal/login"
	"github.com/desertthunder/eventory/internal/models"
)

// Machine is the part of [login.Machine] the model drives.
type Machine interface {
	Send(e login.Event) bool
	Snapshot() login.Snapshot
}

// LoginModel renders login snapshots and turns key presses into user events.
type LoginModel struct {
	machine  Machine
	snapshot login.Snapshot
	user     *models.User
	channel  *models.Channel
	redirect string
	finished bool
	width    int
	height   int
	roles    list.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
}

// NewLoginModel creates a model showing the initial snapshot. Call [LoginModel.Attach] before running it.
func NewLoginModel() *LoginModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &LoginModel{
		snapshot: login.Initial(),
		roles:    newRoleList(),
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Attach connects the model to the machine it sends events to.
func (m *LoginModel) Attach(machine Machine) {
	m.machine = machine
	m.snapshot = machine.Snapshot()
}

// Snapshot returns the last snapshot the model rendered.
func (m *LoginModel) Snapshot() login.Snapshot { return m.snapshot }

// User returns the user record published by the flow, if any.
func (m *LoginModel) User() *models.User { return m.user }

// Channel returns the channel published by the flow, if any.
func (m *LoginModel) Channel() *models.Channel { return m.channel }

// Redirect returns the destination the flow completed with and whether it completed.
func (m *LoginModel) Redirect() (string, bool) { return m.redirect, m.finished }

// Init starts the spinner.
func (m *LoginModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.roles.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgSnapshot:
			m.snapshot = msg.data.(login.Snapshot)
		case MsgUserPublished:
			m.user = msg.data.(*models.User)
		case MsgChannelPublished:
			m.channel = msg.data.(*models.Channel)
		case MsgRedirect:
			m.redirect = msg.data.(string)
			m.finished = true
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m *LoginModel) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	switch m.snapshot.State {
	case login.Idle:
		if key.Matches(msg, m.keys.signIn) {
			m.send(login.TryAuth{})
		}
	case login.Failure:
		if key.Matches(msg, m.keys.retry) {
			m.send(login.TryAuth{})
		}
	case login.SelectRole:
		if key.Matches(msg, m.keys.choose) {
			if item, ok := m.roles.SelectedItem().(roleItem); ok {
				m.send(login.Signup{Form: models.SignupForm{Role: item.role}})
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.roles, cmd = m.roles.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *LoginModel) send(e login.Event) {
	if m.machine != nil {
		m.machine.Send(e)
	}
}

// View renders the current snapshot.
func (m *LoginModel) View() string {
	s := m.snapshot

	switch s.State {
	case login.Idle:
		return m.screen(
			styles.title.Render("eventory"),
			"Sign in with your Google account to continue.",
			m.keys.signIn, m.keys.quit,
		)
	case login.Authenticating:
		return m.pending("Waiting for Google sign-in in your browser...")
	case login.CheckingUser:
		return m.pending("Checking your account...")
	case login.GetYoutubeChannel:
		return m.pending("Fetching your YouTube channel...")
	case login.SelectRole:
		body := m.roles.View()
		if c := s.Context.Channel; c != nil {
			body = fmt.Sprintf("Channel: %s\n\n%s", c.Title, body)
		}
		return m.screen("", body, m.keys.up, m.keys.down, m.keys.choose, m.keys.quit)
	case login.SigningUp:
		return m.pending("Creating your account...")
	case login.CannotSignup:
		return m.screen(
			styles.err.Render("Cannot sign up"),
			fmt.Sprintf("%s\n\nA YouTube channel is required to create an account.", s.Context.LastError),
			m.keys.quit,
		)
	case login.CreatingSession:
		return m.pending("Starting your session...")
	case login.UpdateYoutube:
		return m.pending("Updating your YouTube channel...")
	case login.Warning:
		return m.screen(
			styles.warn.Render("Signed in with a warning"),
			fmt.Sprintf("Could not update your YouTube channel: %s", s.Context.LastError),
		)
	case login.Failure:
		return m.screen(
			styles.err.Render("Sign-in failed"),
			s.Context.LastError,
			m.keys.retry, m.keys.quit,
		)
	case login.Authenticated:
		return m.renderAuthenticated()
	default:
		login.Unreachable(s.State)
		return ""
	}
}

func (m *LoginModel) pending(label string) string {
	return m.screen("", fmt.Sprintf("%s %s", m.spinner.View(), label), m.keys.quit)
}

func (m *LoginModel) screen(title, body string, bindings ...key.Binding) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString(body)
	if len(bindings) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView(bindings))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *LoginModel) renderAuthenticated() string {
	var who string
	switch {
	case m.user != nil && m.user.Email != "":
		who = m.user.Email
	case m.snapshot.Context.Identity != nil:
		who = m.snapshot.Context.Identity.Email
	}

	body := fmt.Sprintf("Signed in as %s", who)
	if m.channel != nil {
		body += fmt.Sprintf("\nYouTube channel: %s", m.channel.Title)
	}
	if m.finished {
		body += fmt.Sprintf("\nRedirecting to %s", m.redirect)
	}
	return m.screen(styles.ok.Render("✓ Signed in"), body)
}

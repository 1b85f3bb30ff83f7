package ui

import (
	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/eventory/internal/models"
)

var _ list.Item = roleItem{}

// roleItem wraps [models.Role] to implement [list.Item].
type roleItem struct {
	role models.Role
}

func (i roleItem) FilterValue() string { return i.role.String() }
func (i roleItem) Title() string       { return i.role.String() }
func (i roleItem) Description() string {
	switch i.role {
	case models.RoleInfluencer:
		return "Host events and reward your audience"
	case models.RoleParticipant:
		return "Join events and collect rewards"
	}
	return ""
}

func newRoleList() list.Model {
	items := make([]list.Item, len(models.Roles))
	for i, role := range models.Roles {
		items[i] = roleItem{role: role}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "How will you use eventory?"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

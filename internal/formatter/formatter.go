// package formatter renders route catalogs and user records in various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/routes"
	"github.com/desertthunder/eventory/internal/shared"
)

// Format names an output format accepted by the --format flag.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat returns the format named by s. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
}

// RouteRow describes one catalog template and its declared parameter shape.
type RouteRow struct {
	Template string   `json:"template"`
	Segments []string `json:"segments"`
	Query    []string `json:"query"`
	Public   bool     `json:"public"`
}

// RouteRows builds a row for each template.
func RouteRows(templates []routes.Template) []RouteRow {
	rows := make([]RouteRow, 0, len(templates))
	for _, t := range templates {
		shape, _ := t.Shape()
		path, _, _ := strings.Cut(t.String(), "?")
		rows = append(rows, RouteRow{
			Template: t.String(),
			Segments: nonNil(shape.Segments),
			Query:    nonNil(shape.Query),
			Public:   routes.IsPublic(samplePath(path)),
		})
	}
	return rows
}

// samplePath fills each :name segment with its own name so the path can be
// checked against the access rules.
func samplePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = strings.TrimPrefix(p, ":")
	}
	return strings.Join(parts, "/")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RenderRoutes renders rows in format f.
func RenderRoutes(f Format, rows []RouteRow) ([]byte, error) {
	switch f {
	case FormatJSON:
		return toJSON(rows)
	case FormatCSV:
		return RoutesToCSV(rows)
	case FormatMarkdown:
		return RoutesToMarkdown(rows), nil
	case FormatText:
		return RoutesToText(rows), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

// RenderUsers renders users in format f.
func RenderUsers(f Format, users []*models.User) ([]byte, error) {
	switch f {
	case FormatJSON:
		if users == nil {
			users = []*models.User{}
		}
		return toJSON(users)
	case FormatCSV:
		return UsersToCSV(users)
	case FormatMarkdown:
		return UsersToMarkdown(users), nil
	case FormatText:
		return UsersToText(users), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

// RenderUser renders a single user with its linked channel, which may be nil.
func RenderUser(f Format, user *models.User, channel *models.Channel) ([]byte, error) {
	switch f {
	case FormatJSON:
		return toJSON(struct {
			*models.User
			Channel *models.Channel `json:"youtube,omitempty"`
		}{user, channel})
	case FormatCSV:
		return UsersToCSV([]*models.User{user})
	case FormatMarkdown:
		return UserToMarkdown(user, channel), nil
	case FormatText:
		return UserToText(user, channel), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

func toJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// RoutesToCSV converts rows to CSV with columns: Template, Segments, Query, Public
func RoutesToCSV(rows []RouteRow) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Template,
			strings.Join(r.Segments, ";"),
			strings.Join(r.Query, ";"),
			fmt.Sprintf("%t", r.Public),
		})
	}
	return writeCSV([]string{"Template", "Segments", "Query", "Public"}, records)
}

// RoutesToMarkdown converts rows to a Markdown table
func RoutesToMarkdown(rows []RouteRow) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Routes\n\n")
	buf.WriteString("| Template | Segments | Query | Access |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, r := range rows {
		buf.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s |\n",
			r.Template, listOrDash(r.Segments), listOrDash(r.Query), access(r.Public)))
	}

	return buf.Bytes()
}

// RoutesToText converts rows to plain text, one template per line
func RoutesToText(rows []RouteRow) []byte {
	var buf bytes.Buffer

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Template))
	}

	for _, r := range rows {
		buf.WriteString(fmt.Sprintf("%-*s  %s", width, r.Template, access(r.Public)))
		if len(r.Segments) > 0 {
			buf.WriteString(fmt.Sprintf("  segments=%s", strings.Join(r.Segments, ",")))
		}
		if len(r.Query) > 0 {
			buf.WriteString(fmt.Sprintf("  query=%s", strings.Join(r.Query, ",")))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// UsersToCSV converts users to CSV with columns: UID, Name, Email, Role, CanView, CanAdmin, Created
func UsersToCSV(users []*models.User) ([]byte, error) {
	records := make([][]string, 0, len(users))
	for _, u := range users {
		records = append(records, []string{
			u.UID,
			u.DisplayName,
			u.Email,
			u.Role.String(),
			strings.Join(u.CanViewList, ";"),
			strings.Join(u.CanAdminList, ";"),
			formatTime(u),
		})
	}
	return writeCSV([]string{"UID", "Name", "Email", "Role", "CanView", "CanAdmin", "Created"}, records)
}

// UsersToMarkdown converts users to a Markdown table
func UsersToMarkdown(users []*models.User) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Users\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %d\n\n", len(users)))
	buf.WriteString("| UID | Name | Email | Role |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, u := range users {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", u.UID, u.DisplayName, u.Email, u.Role))
	}

	return buf.Bytes()
}

// UsersToText converts users to plain text format
func UsersToText(users []*models.User) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Users: %d\n\n", len(users)))
	for i, u := range users {
		buf.WriteString(fmt.Sprintf("%d. %s (%s) - %s\n", i+1, u.UID, u.Role, u.Email))
	}

	return buf.Bytes()
}

// UserToMarkdown converts a user and its linked channel to Markdown
func UserToMarkdown(u *models.User, channel *models.Channel) []byte {
	var buf bytes.Buffer

	name := u.DisplayName
	if name == "" {
		name = u.UID
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", name))

	if u.PhotoURL != "" {
		buf.WriteString(fmt.Sprintf("![Photo](%s)\n\n", u.PhotoURL))
	}

	buf.WriteString(fmt.Sprintf("**UID**: %s\n", u.UID))
	buf.WriteString(fmt.Sprintf("**Email**: %s\n", u.Email))
	buf.WriteString(fmt.Sprintf("**Role**: %s\n", u.Role))
	buf.WriteString(fmt.Sprintf("**Can view**: %s\n", listOrDash(u.CanViewList)))
	buf.WriteString(fmt.Sprintf("**Can admin**: %s\n", listOrDash(u.CanAdminList)))

	if channel != nil {
		buf.WriteString("\n## YouTube\n\n")
		buf.WriteString(fmt.Sprintf("[%s](%s)\n\n", channel.Title, channel.URL()))
		buf.WriteString(fmt.Sprintf("**Subscribers**: %d\n", channel.SubscriberCount))
		buf.WriteString(fmt.Sprintf("**Videos**: %d\n", channel.VideoCount))
	}

	return buf.Bytes()
}

// UserToText converts a user and its linked channel to plain text
func UserToText(u *models.User, channel *models.Channel) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %s\n", u.UID))
	if u.DisplayName != "" {
		buf.WriteString(fmt.Sprintf("Name: %s\n", u.DisplayName))
	}
	buf.WriteString(fmt.Sprintf("Email: %s\n", u.Email))
	buf.WriteString(fmt.Sprintf("Role: %s\n", u.Role))

	if channel != nil {
		buf.WriteString(fmt.Sprintf("YouTube: %s (%s)\n", channel.Title, channel.URL()))
	} else {
		buf.WriteString("YouTube: not linked\n")
	}

	return buf.Bytes()
}

// WriteFile writes rendered output to path, or to stdout when path is empty or "-".
func WriteFile(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write CSV record: %w", err)
	}

	return buf.Bytes(), nil
}

func formatTime(u *models.User) string {
	if u.Created.IsZero() {
		return ""
	}
	return u.Created.UTC().Format("2006-01-02T15:04:05Z")
}

func listOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

func access(public bool) string {
	if public {
		return "public"
	}
	return "private"
}

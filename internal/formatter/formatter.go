// package formatter renders notifications and session status as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Status is the printable view of the session.
type Status struct {
	Hydrated      bool         `json:"hydrated"`
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
	ExpiresAt     time.Time    `json:"expiresAt,omitzero"`
	HasRefresh    bool         `json:"hasRefreshToken"`
	Storage       string       `json:"storage,omitempty"`
}

// Expired reports whether the access token has passed its expiry.
func (s Status) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExportToJSON encodes v with indentation.
func ExportToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV writes one row per notification with columns: ID, Type, Title, Message, Read, CreatedAt
func ExportToCSV(list []models.Notification) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Type", "Title", "Message", "Read", "CreatedAt"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, n := range list {
		record := []string{
			n.ID,
			string(n.Type),
			n.Title,
			n.Message,
			strconv.FormatBool(n.Read),
			timestamp(n.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a page as a checklist; read notifications are checked.
func ExportToMarkdown(page *models.NotificationPage) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Notifications\n\n")
	fmt.Fprintf(&buf, "**Page**: %d of %d\n", page.Page, max(page.TotalPages, 1))
	fmt.Fprintf(&buf, "**Total**: %d\n", page.Total)
	if page.UnreadCount != nil {
		fmt.Fprintf(&buf, "**Unread**: %d\n", *page.UnreadCount)
	}
	buf.WriteString("\n")

	for _, n := range page.Notifications {
		box := " "
		if n.Read {
			box = "x"
		}
		fmt.Fprintf(&buf, "- [%s] **%s** (%s)", box, n.Title, n.Type)
		if n.Message != "" {
			fmt.Fprintf(&buf, ": %s", n.Message)
		}
		fmt.Fprintf(&buf, " `%s`\n", n.ID)
	}
	return buf.Bytes(), nil
}

// ExportToText renders a page one notification per line, unread ones marked with "*".
func ExportToText(page *models.NotificationPage) ([]byte, error) {
	var buf bytes.Buffer

	if len(page.Notifications) == 0 {
		buf.WriteString("No notifications\n")
	}
	for _, n := range page.Notifications {
		buf.WriteString(NotificationLine(n))
		buf.WriteString("\n")
	}

	fmt.Fprintf(&buf, "\nPage %d of %d, %d total", page.Page, max(page.TotalPages, 1), page.Total)
	if page.UnreadCount != nil {
		fmt.Fprintf(&buf, ", %d unread", *page.UnreadCount)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// NotificationLine is the single-line text form of n.
func NotificationLine(n models.Notification) string {
	mark := " "
	if !n.Read {
		mark = "*"
	}
	line := fmt.Sprintf("%s %s  [%s] %s", mark, n.ID, n.Type, n.Title)
	if n.Message != "" {
		line += ": " + n.Message
	}
	if !n.CreatedAt.IsZero() {
		line += "  (" + timestamp(n.CreatedAt) + ")"
	}
	return line
}

// StatusToText renders the session status relative to now.
func StatusToText(s Status, now time.Time) []byte {
	var buf bytes.Buffer

	switch {
	case !s.Hydrated:
		buf.WriteString("Session: unknown (not restored)\n")
	case !s.Authenticated:
		buf.WriteString("Session: signed out\n")
	default:
		buf.WriteString("Session: signed in\n")
	}
	if s.User != nil {
		fmt.Fprintf(&buf, "User: %s <%s>\n", s.User.Name, s.User.Email)
		fmt.Fprintf(&buf, "Role: %s\n", s.User.Role)
	}
	if !s.ExpiresAt.IsZero() {
		state := "valid"
		if s.Expired(now) {
			state = "expired"
		}
		fmt.Fprintf(&buf, "Access token: %s until %s\n", state, timestamp(s.ExpiresAt))
	}
	if s.Authenticated {
		fmt.Fprintf(&buf, "Refresh token: %s\n", presence(s.HasRefresh))
	}
	if s.Storage != "" {
		fmt.Fprintf(&buf, "Storage: %s\n", s.Storage)
	}
	return buf.Bytes()
}

// Render writes page to w in format.
func Render(w io.Writer, format Format, page *models.NotificationPage) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = ExportToJSON(page)
	case FormatMarkdown:
		data, err = ExportToMarkdown(page)
	case FormatCSV:
		data, err = ExportToCSV(page.Notifications)
	default:
		data, err = ExportToText(page)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteExport renders page to a file. The path defaults to notifications.{ext}.
func WriteExport(page *models.NotificationPage, format Format, path string) (string, error) {
	if path == "" {
		path = "notifications." + extension(format)
	}

	var buf bytes.Buffer
	if err := Render(&buf, format, page); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func extension(f Format) string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

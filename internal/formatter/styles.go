package formatter

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/reelx/internal/models"
)

// DefaultPalette is used by the CLI for live output.
var DefaultPalette = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet of named [lipgloss.Style] values.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Event formats a pushed notification for the watch stream. Unread
// notifications get the title style.
func (p *Palette) Event(n models.Notification) string {
	title := p.help.Render(n.Title)
	if !n.Read {
		title = p.title.Render(n.Title)
	}
	line := p.warn.Render(string(n.Type)) + " " + title
	if n.Message != "" {
		line += " " + n.Message
	}
	return line
}

// Connection describes channel liveness.
func (p *Palette) Connection(connected bool) string {
	if connected {
		return p.ok.Render("connected")
	}
	return p.err.Render("disconnected")
}

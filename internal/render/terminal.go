package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zulandar/quickdesk/internal/models"
)

// Terminal renders view models as styled text for the CLI.
type Terminal struct {
	width int

	header lipgloss.Style
	faint  lipgloss.Style
	id     lipgloss.Style
	title  lipgloss.Style
}

// statusColors maps each status to its badge color.
var statusColors = map[models.Status]lipgloss.Color{
	models.StatusOpen:       lipgloss.Color("33"),
	models.StatusInProgress: lipgloss.Color("214"),
	models.StatusResolved:   lipgloss.Color("35"),
	models.StatusClosed:     lipgloss.Color("244"),
}

// NewTerminal creates a Terminal renderer. width <= 0 means 100 columns.
func NewTerminal(width int) *Terminal {
	if width <= 0 {
		width = 100
	}
	return &Terminal{
		width:  width,
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		faint:  lipgloss.NewStyle().Faint(true),
		id:     lipgloss.NewStyle().Width(8),
		title:  lipgloss.NewStyle().Bold(true),
	}
}

// Badge renders a status as a colored label.
func (r *Terminal) Badge(s models.Status) string {
	return lipgloss.NewStyle().Foreground(statusColors[s]).Bold(true).Render(string(s))
}

// Grid renders one line per card plus a meta line.
func (r *Terminal) Grid(v GridView) string {
	if v.Empty {
		return r.faint.Render(v.EmptyMessage) + "\n"
	}
	var b strings.Builder
	for _, c := range v.Cards {
		row := r.id.Render("#"+string(c.ID)) + r.Badge(c.Status) + "  " + r.title.Render(c.Subject)
		b.WriteString(lipgloss.NewStyle().MaxWidth(r.width).Render(row))
		b.WriteString("\n")

		meta := fmt.Sprintf("%s  by %s", c.Category, c.CreatedBy)
		if c.AssignedTo != "" {
			meta += " -> " + c.AssignedTo
		}
		if c.CreatedAt != "" {
			meta += "  " + c.CreatedAt
		}
		meta += fmt.Sprintf("  %d replies", c.ReplyCount)
		b.WriteString(r.id.Render("") + r.faint.MaxWidth(r.width-8).Render(meta))
		b.WriteString("\n")
	}
	return b.String()
}

// Detail renders the full ticket with its replies.
func (r *Terminal) Detail(v DetailView) string {
	var b strings.Builder
	b.WriteString(r.header.Render(fmt.Sprintf("Ticket #%s", v.ID)) + "  " + r.Badge(v.Status) + "\n")
	b.WriteString(r.title.Render(v.Subject) + "\n\n")

	field := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString(r.faint.Render(name+":") + " " + value + "\n")
	}
	field("Category", v.Category)
	field("Priority", v.Priority)
	field("Created by", v.CreatedBy)
	field("Created on", v.CreatedAt)
	field("Assigned to", v.AssignedTo)
	field("Attachment", v.Attachment)

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(r.width).Render(v.Description))
	b.WriteString("\n")

	if len(v.StatusButtons) > 0 {
		var opts []string
		for _, sb := range v.StatusButtons {
			if sb.Disabled {
				opts = append(opts, r.faint.Render("["+string(sb.Status)+"]"))
			} else {
				opts = append(opts, string(sb.Status))
			}
		}
		b.WriteString("\n" + r.faint.Render("Set status:") + " " + strings.Join(opts, " | ") + "\n")
	}

	b.WriteString("\n" + r.header.Render(fmt.Sprintf("Replies (%d)", len(v.Replies))) + "\n")
	if v.NoReplies != "" {
		b.WriteString(r.faint.Render(v.NoReplies) + "\n")
	}
	for _, rep := range v.Replies {
		b.WriteString(r.title.Render(rep.Author) + " " + r.faint.Render(rep.CreatedAt) + "\n")
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Width(r.width).Render(rep.Message) + "\n")
	}
	return b.String()
}

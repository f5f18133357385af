// Package render turns tickets into view models and renders them as HTML
// fragments or terminal text. Every function here is pure: the same
// tickets and user always produce the same output.
package render

import (
	"time"

	"github.com/zulandar/quickdesk/internal/models"
)

// EmptyGridMessage is shown in place of the grid when no ticket matches.
const EmptyGridMessage = "No tickets found."

// NoRepliesMessage is shown in the detail view of a ticket without replies.
const NoRepliesMessage = "No replies yet."

// DateLayout formats ticket and reply timestamps.
const DateLayout = "2006-01-02 15:04"

// Card is one ticket in the grid.
type Card struct {
	ID          models.ID
	Subject     string
	Description string
	Category    string
	Priority    string
	Status      models.Status
	StatusSlug  string
	CreatedBy   string
	AssignedTo  string // empty when unassigned
	CreatedAt   string
	ReplyCount  int

	ShowActions     bool
	StartDisabled   bool
	ResolveDisabled bool
}

// GridView is the ticket grid.
type GridView struct {
	Cards        []Card
	Empty        bool
	EmptyMessage string
}

// StatusButton is one option of the detail view's status control.
type StatusButton struct {
	Status   models.Status
	Slug     string
	Disabled bool
}

// ReplyView is one rendered reply.
type ReplyView struct {
	Author    string
	Message   string
	CreatedAt string
}

// DetailView is the full view of one ticket.
type DetailView struct {
	Card
	Attachment    string
	StatusButtons []StatusButton // nil for the user role
	Replies       []ReplyView
	NoReplies     string // set when Replies is empty
	ReplyFormID   string
	ReplyInputID  string
}

// ShowStatusActions reports whether u may change ticket status.
func ShowStatusActions(u models.User) bool {
	return u.Role.Elevated()
}

// StartDisabled reports whether the Start action is unavailable.
func StartDisabled(t models.Ticket) bool {
	return t.Status == models.StatusInProgress
}

// ResolveDisabled reports whether the Resolve action is unavailable.
func ResolveDisabled(t models.Ticket) bool {
	return t.Status == models.StatusResolved || t.Status == models.StatusClosed
}

// TransitionDisabled reports whether moving t to s is a no-op.
func TransitionDisabled(t models.Ticket, s models.Status) bool {
	return t.Status == s
}

// Grid builds the grid view for tickets as seen by u.
func Grid(tickets []models.Ticket, u models.User) GridView {
	if len(tickets) == 0 {
		return GridView{Empty: true, EmptyMessage: EmptyGridMessage}
	}
	cards := make([]Card, 0, len(tickets))
	for _, t := range tickets {
		cards = append(cards, card(t, u))
	}
	return GridView{Cards: cards}
}

// Detail builds the detail view of t as seen by u.
func Detail(t models.Ticket, u models.User) DetailView {
	v := DetailView{
		Card:         card(t, u),
		Attachment:   t.Attachment,
		ReplyFormID:  "reply-form-" + string(t.ID),
		ReplyInputID: "reply-message-" + string(t.ID),
	}
	if ShowStatusActions(u) {
		v.StatusButtons = make([]StatusButton, 0, len(models.AllStatuses))
		for _, s := range models.AllStatuses {
			v.StatusButtons = append(v.StatusButtons, StatusButton{
				Status:   s,
				Slug:     s.Slug(),
				Disabled: TransitionDisabled(t, s),
			})
		}
	}
	for _, r := range t.Replies {
		v.Replies = append(v.Replies, ReplyView{
			Author:    r.User.DisplayName(),
			Message:   r.Message,
			CreatedAt: formatTime(r.CreatedAt.Time),
		})
	}
	if len(v.Replies) == 0 {
		v.NoReplies = NoRepliesMessage
	}
	return v
}

func card(t models.Ticket, u models.User) Card {
	c := Card{
		ID:          t.ID,
		Subject:     t.Subject,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      t.Status,
		StatusSlug:  t.Status.Slug(),
		CreatedBy:   t.CreatedBy.DisplayName(),
		CreatedAt:   formatTime(t.CreatedAt.Time),
		ReplyCount:  len(t.Replies),
	}
	if t.AssignedTo != nil {
		c.AssignedTo = t.AssignedTo.DisplayName()
	}
	if ShowStatusActions(u) {
		c.ShowActions = true
		c.StartDisabled = StartDisabled(t)
		c.ResolveDisabled = ResolveDisabled(t)
	}
	return c
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DateLayout)
}

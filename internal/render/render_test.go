package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/quickdesk/internal/models"
)

var (
	requester = models.User{ID: "u1", Name: "Alice", Role: models.RoleUser}
	agent     = models.User{ID: "a1", Name: "Ana", Role: models.RoleAgent}
)

func ticket(id models.ID, status models.Status) models.Ticket {
	return models.Ticket{
		ID:          id,
		Subject:     "Login issue",
		Description: "Cannot sign in <b>today</b>",
		Category:    "Account",
		Status:      status,
		CreatedBy:   models.Person{ID: "u1", Name: "Alice"},
		CreatedAt:   models.Timestamp{Time: time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)},
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		status  models.Status
		start   bool
		resolve bool
	}{
		{models.StatusOpen, false, false},
		{models.StatusInProgress, true, false},
		{models.StatusResolved, false, true},
		{models.StatusClosed, false, true},
	}
	for _, tt := range tests {
		tk := ticket("1", tt.status)
		if got := StartDisabled(tk); got != tt.start {
			t.Errorf("StartDisabled(%s) = %v", tt.status, got)
		}
		if got := ResolveDisabled(tk); got != tt.resolve {
			t.Errorf("ResolveDisabled(%s) = %v", tt.status, got)
		}
		for _, s := range models.AllStatuses {
			if got := TransitionDisabled(tk, s); got != (s == tt.status) {
				t.Errorf("TransitionDisabled(%s -> %s) = %v", tt.status, s, got)
			}
		}
	}
	if ShowStatusActions(requester) || !ShowStatusActions(agent) {
		t.Error("ShowStatusActions role gating wrong")
	}
}

func TestGrid_Empty(t *testing.T) {
	v := Grid(nil, requester)
	if !v.Empty || v.EmptyMessage != EmptyGridMessage || len(v.Cards) != 0 {
		t.Errorf("Grid(nil) = %+v", v)
	}
}

func TestGrid_RoleGating(t *testing.T) {
	tickets := []models.Ticket{ticket("1", models.StatusInProgress)}

	userView := Grid(tickets, requester)
	if userView.Cards[0].ShowActions {
		t.Error("user role must not see Start/Resolve")
	}

	agentView := Grid(tickets, agent)
	c := agentView.Cards[0]
	if !c.ShowActions || !c.StartDisabled || c.ResolveDisabled {
		t.Errorf("agent card = %+v", c)
	}
}

func TestGrid_CardFields(t *testing.T) {
	tk := ticket("7", models.StatusInProgress)
	tk.AssignedTo = &models.Person{ID: "a1"}
	tk.Replies = []models.Reply{{Message: "a"}, {Message: "b"}}
	c := Grid([]models.Ticket{tk}, requester).Cards[0]
	if c.StatusSlug != "in-progress" {
		t.Errorf("StatusSlug = %q", c.StatusSlug)
	}
	if c.AssignedTo != "Unknown" || c.ReplyCount != 2 {
		t.Errorf("card = %+v", c)
	}
	if c.CreatedAt == "" {
		t.Error("CreatedAt should be formatted")
	}
}

func TestDetail(t *testing.T) {
	tk := ticket("5", models.StatusResolved)
	tk.Replies = []models.Reply{
		{User: models.Person{Name: "Ana"}, Message: "first"},
		{User: models.Person{}, Message: "second"},
	}

	v := Detail(tk, agent)
	if len(v.StatusButtons) != 4 {
		t.Fatalf("StatusButtons = %d, want 4", len(v.StatusButtons))
	}
	for _, b := range v.StatusButtons {
		if b.Disabled != (b.Status == models.StatusResolved) {
			t.Errorf("button %s disabled=%v", b.Status, b.Disabled)
		}
	}
	if v.Replies[0].Message != "first" || v.Replies[1].Author != "Unknown" {
		t.Errorf("replies = %+v", v.Replies)
	}
	if v.NoReplies != "" {
		t.Error("NoReplies should be empty when replies exist")
	}
	if v.ReplyFormID != "reply-form-5" || v.ReplyInputID != "reply-message-5" {
		t.Errorf("ids = %q %q", v.ReplyFormID, v.ReplyInputID)
	}

	if Detail(tk, requester).StatusButtons != nil {
		t.Error("user role must not get the status control")
	}
	if Detail(ticket("6", models.StatusOpen), requester).NoReplies != NoRepliesMessage {
		t.Error("expected empty replies message")
	}
}

func TestHTML_GridEmptyState(t *testing.T) {
	h, err := NewHTML()
	if err != nil {
		t.Fatalf("NewHTML: %v", err)
	}
	var buf bytes.Buffer
	if err := h.Grid(&buf, Grid(nil, requester)); err != nil {
		t.Fatalf("Grid: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "No tickets found.") {
		t.Errorf("missing empty-state message: %s", out)
	}
	if strings.Contains(out, "tickets-grid") {
		t.Error("empty grid must not render the list container")
	}
}

func TestHTML_GridCards(t *testing.T) {
	h, err := NewHTML()
	if err != nil {
		t.Fatal(err)
	}
	tickets := []models.Ticket{ticket("1", models.StatusInProgress), ticket("2", models.StatusOpen)}

	var buf bytes.Buffer
	if err := h.Grid(&buf, Grid(tickets, agent)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, `class="ticket-card"`) != 2 {
		t.Errorf("expected 2 cards: %s", out)
	}
	if !strings.Contains(out, "status-in-progress") {
		t.Error("missing status badge class")
	}
	if !strings.Contains(out, `data-action="start" disabled`) {
		t.Error("Start should be disabled for the In Progress ticket")
	}
	if strings.Contains(out, "<b>today</b>") {
		t.Error("description must be escaped")
	}

	buf.Reset()
	if err := h.Grid(&buf, Grid(tickets, requester)); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `data-action="start"`) {
		t.Error("user role must not see Start")
	}
}

func TestHTML_Detail(t *testing.T) {
	h, err := NewHTML()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := h.Detail(&buf, Detail(ticket("9", models.StatusOpen), agent)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"No replies yet.", `id="reply-form-9"`, `id="reply-message-9"`, "Update Status:"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q", want)
		}
	}
}

func TestHTML_Idempotent(t *testing.T) {
	h, err := NewHTML()
	if err != nil {
		t.Fatal(err)
	}
	v := Grid([]models.Ticket{ticket("1", models.StatusOpen)}, agent)
	a, _ := h.GridHTML(v)
	b, _ := h.GridHTML(v)
	if a != b {
		t.Error("rendering the same view twice should match")
	}
}

func TestTerminal(t *testing.T) {
	term := NewTerminal(80)
	if out := term.Grid(Grid(nil, requester)); !strings.Contains(out, EmptyGridMessage) {
		t.Errorf("terminal empty grid = %q", out)
	}

	out := term.Grid(Grid([]models.Ticket{ticket("3", models.StatusOpen)}, requester))
	if !strings.Contains(out, "#3") || !strings.Contains(out, "Login issue") {
		t.Errorf("terminal grid = %q", out)
	}

	detail := term.Detail(Detail(ticket("3", models.StatusOpen), agent))
	for _, want := range []string{"Ticket #3", "Replies (0)", NoRepliesMessage, "Set status:"} {
		if !strings.Contains(detail, want) {
			t.Errorf("terminal detail missing %q", want)
		}
	}
}

// Package notify carries user-facing alerts: the transient banner shown
// after an action, the SSE stream feeding open browser tabs, and optional
// chat mirrors (Slack, Discord) for ticket status changes.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/models"
)

// Style is the visual category of a notification.
type Style string

const (
	StyleSuccess Style = "success"
	StyleInfo    Style = "info"
	StyleError   Style = "error"
)

// Color constants for notification styles.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorError   = "#e53935"
)

// AlertLifetime is how long a banner alert stays visible.
const AlertLifetime = 5 * time.Second

// Notification is one alert.
type Notification struct {
	ID       uint64    `json:"id"`
	Message  string    `json:"message"`
	Style    Style     `json:"style"`
	TicketID models.ID `json:"ticket_id,omitempty"`
	At       time.Time `json:"at"`
}

// Icon returns the icon name the UI shows next to the message.
func (n Notification) Icon() string {
	switch n.Style {
	case StyleSuccess:
		return "check-circle"
	case StyleError:
		return "exclamation-triangle"
	default:
		return "info-circle"
	}
}

// Color maps the style to a sidebar color for chat attachments.
func (n Notification) Color() string {
	switch n.Style {
	case StyleSuccess:
		return ColorSuccess
	case StyleError:
		return ColorError
	default:
		return ColorInfo
	}
}

// TicketResolved builds the alert for a ticket that moved to Resolved.
func TicketResolved(t models.Ticket) Notification {
	return Notification{
		Message:  fmt.Sprintf("Ticket #%s: %q has been resolved.", t.ID, t.Subject),
		Style:    StyleSuccess,
		TicketID: t.ID,
	}
}

// TicketClosed builds the alert for a ticket that moved to Closed.
func TicketClosed(t models.Ticket) Notification {
	return Notification{
		Message:  fmt.Sprintf("Ticket #%s: %q has been closed.", t.ID, t.Subject),
		Style:    StyleInfo,
		TicketID: t.ID,
	}
}

// Sink mirrors ticket notifications to an external channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Hub fans notifications out to subscribers and sinks and remembers the
// most recent one for the next page render.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	latest *Notification
	subs   map[chan Notification]struct{}
	sinks  []Sink
	log    zerolog.Logger
	now    func() time.Time
}

// HubOpts holds parameters for creating a Hub.
type HubOpts struct {
	Sinks  []Sink
	Logger zerolog.Logger
}

// NewHub creates a Hub.
func NewHub(opts HubOpts) *Hub {
	return &Hub{
		subs:  make(map[chan Notification]struct{}),
		sinks: opts.Sinks,
		log:   opts.Logger,
		now:   time.Now,
	}
}

// Publish records n as the latest alert, delivers it to every subscriber
// without blocking, and mirrors ticket notifications to the sinks. Sink
// failures are logged only.
func (h *Hub) Publish(ctx context.Context, n Notification) Notification {
	h.mu.Lock()
	h.nextID++
	n.ID = h.nextID
	if n.At.IsZero() {
		n.At = h.now()
	}
	latest := n
	h.latest = &latest
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.log.Warn().Uint64("id", n.ID).Msg("notify: subscriber full, dropping notification")
		}
	}
	sinks := h.sinks
	h.mu.Unlock()

	if n.TicketID == "" {
		return n
	}
	for _, s := range sinks {
		if err := s.Send(ctx, n); err != nil {
			h.log.Error().Err(err).Str("sink", s.Name()).Str("ticket", string(n.TicketID)).Msg("notify: mirror failed")
		}
	}
	return n
}

// Success publishes a success-styled alert.
func (h *Hub) Success(ctx context.Context, msg string) Notification {
	return h.Publish(ctx, Notification{Message: msg, Style: StyleSuccess})
}

// Info publishes an info-styled alert.
func (h *Hub) Info(ctx context.Context, msg string) Notification {
	return h.Publish(ctx, Notification{Message: msg, Style: StyleInfo})
}

// Error publishes an error-styled alert.
func (h *Hub) Error(ctx context.Context, msg string) Notification {
	return h.Publish(ctx, Notification{Message: msg, Style: StyleError})
}

// Current returns the latest alert if it is younger than AlertLifetime.
// A newer alert replaces the previous one.
func (h *Hub) Current() (Notification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil || h.now().Sub(h.latest.At) >= AlertLifetime {
		return Notification{}, false
	}
	return *h.latest, true
}

// Subscribe returns a buffered channel of future notifications and a
// function that unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

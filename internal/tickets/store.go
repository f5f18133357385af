// Package tickets holds the client-side ticket cache: the last fetched
// snapshot, the filtered view derived from it, and the background diff
// that announces status changes.
package tickets

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/inflight"
	"github.com/zulandar/quickdesk/internal/models"
	"github.com/zulandar/quickdesk/internal/notify"
)

// ListKey is the in-flight key shared by LoadAll and Poll.
const ListKey = "tickets.list"

// Fetcher is the subset of the API client the Store uses.
type Fetcher interface {
	ListTickets(ctx context.Context, token string) ([]models.Ticket, error)
}

// SessionSource reports the session a background poll should run as.
type SessionSource interface {
	Current() *models.Session
}

// Publisher receives status-change notifications.
type Publisher interface {
	Publish(ctx context.Context, n notify.Notification) notify.Notification
}

// Store is the ticket cache. It is safe for concurrent use.
type Store struct {
	fetcher   Fetcher
	publisher Publisher
	tracker   *inflight.Tracker
	log       zerolog.Logger

	mu       sync.RWMutex
	tickets  []models.Ticket
	filtered []models.Ticket
	criteria Criteria
}

// StoreOpts holds parameters for creating a Store.
type StoreOpts struct {
	Fetcher   Fetcher
	Publisher Publisher         // optional; nil drops poll notifications
	Tracker   *inflight.Tracker // optional; one is created if nil
	Logger    zerolog.Logger
}

// NewStore creates an empty Store.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("tickets: fetcher is required")
	}
	tr := opts.Tracker
	if tr == nil {
		tr = inflight.New()
	}
	return &Store{
		fetcher:   opts.Fetcher,
		publisher: opts.Publisher,
		tracker:   tr,
		log:       opts.Logger,
		tickets:   []models.Ticket{},
		filtered:  []models.Ticket{},
	}, nil
}

// LoadAll fetches every ticket, replaces the cache and clears the filter.
// On error the cache is left as it was. A fetch completing after a newer
// load or poll was applied, or after Reset, is dropped without error.
func (s *Store) LoadAll(ctx context.Context, token string) error {
	req := s.tracker.Begin(ListKey)
	fetched, err := s.fetcher.ListTickets(ctx, token)
	if err != nil {
		s.tracker.Abandon(req)
		return fmt.Errorf("tickets: load: %w", err)
	}

	s.mu.Lock()
	if !s.tracker.Finish(req) {
		s.mu.Unlock()
		s.log.Debug().Str("request", req.ID).Msg("tickets: discarding superseded load")
		return nil
	}
	s.tickets = fetched
	s.criteria = Criteria{}
	s.filtered = Filter(fetched, s.criteria)
	s.mu.Unlock()

	s.log.Debug().Int("count", len(fetched)).Msg("tickets loaded")
	return nil
}

// Poll refetches the tickets for sess. For the user role, tickets that
// moved to Resolved or Closed since the previous snapshot are published.
// The cache is then replaced and the current filter re-applied. Errors
// are logged and not returned; the emitted notifications are.
func (s *Store) Poll(ctx context.Context, sess *models.Session) []notify.Notification {
	if sess == nil || sess.Token == "" {
		return nil
	}
	return s.poll(ctx, s.tracker.Begin(ListKey), sess)
}

// PollCurrent is Poll for the session src reports. The request is
// registered before the session is read, so a Reset that follows the
// read makes the result stale.
func (s *Store) PollCurrent(ctx context.Context, src SessionSource) []notify.Notification {
	req := s.tracker.Begin(ListKey)
	sess := src.Current()
	if sess == nil || sess.Token == "" {
		s.tracker.Abandon(req)
		return nil
	}
	return s.poll(ctx, req, sess)
}

func (s *Store) poll(ctx context.Context, req inflight.Request, sess *models.Session) []notify.Notification {
	fetched, err := s.fetcher.ListTickets(ctx, sess.Token)
	if err != nil {
		s.tracker.Abandon(req)
		s.log.Warn().Err(err).Msg("tickets: poll failed")
		return nil
	}

	s.mu.Lock()
	if !s.tracker.Finish(req) {
		s.mu.Unlock()
		s.log.Debug().Str("request", req.ID).Msg("tickets: discarding superseded poll")
		return nil
	}
	prev := s.tickets
	s.tickets = fetched
	s.filtered = Filter(fetched, s.criteria)
	s.mu.Unlock()

	if sess.User.Role != models.RoleUser {
		return nil
	}
	var sent []notify.Notification
	for _, t := range StatusChanges(prev, fetched) {
		n := notify.TicketResolved(t)
		if t.Status == models.StatusClosed {
			n = notify.TicketClosed(t)
		}
		if s.publisher != nil {
			n = s.publisher.Publish(ctx, n)
		}
		sent = append(sent, n)
	}
	return sent
}

// ApplyFilter sets the criteria and returns the new filtered view.
func (s *Store) ApplyFilter(c Criteria) []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	s.filtered = Filter(s.tickets, c)
	return cloneTickets(s.filtered)
}

// Criteria returns the active filter.
func (s *Store) Criteria() Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Tickets returns a copy of the full snapshot.
func (s *Store) Tickets() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTickets(s.tickets)
}

// Filtered returns a copy of the filtered view.
func (s *Store) Filtered() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTickets(s.filtered)
}

// Stats computes the dashboard counters from the full snapshot.
func (s *Store) Stats(userID models.ID) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.tickets, userID)
}

// Categories returns the distinct categories in the snapshot, in first-seen
// order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.tickets {
		if t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		out = append(out, t.Category)
	}
	return out
}

// Find returns the ticket with id from the full snapshot.
func (s *Store) Find(id models.ID) (models.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// Reset empties the cache and the filter, and makes any fetch still in
// flight stale.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tracker.Invalidate(ListKey)
	s.tickets = []models.Ticket{}
	s.filtered = []models.Ticket{}
	s.criteria = Criteria{}
	s.mu.Unlock()
}

func cloneTickets(in []models.Ticket) []models.Ticket {
	out := make([]models.Ticket, len(in))
	copy(out, in)
	return out
}

// Package actions turns user intents (create a ticket, change a status,
// reply) into API calls followed by a full reload of the ticket cache.
package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/models"
)

// API is the subset of the API client the Dispatcher uses.
type API interface {
	CreateTicket(ctx context.Context, token string, t api.NewTicket) (string, error)
	UpdateStatus(ctx context.Context, token string, id models.ID, status models.Status) (string, error)
	AddReply(ctx context.Context, token string, id models.ID, message string) (string, error)
}

// TokenSource supplies the current bearer token ("" when logged out).
type TokenSource interface {
	Token() string
}

// Reloader refreshes the ticket cache after a successful mutation.
type Reloader interface {
	LoadAll(ctx context.Context, token string) error
}

// Success messages shown after a mutation. The API's own message is only
// logged.
const (
	TicketCreatedMessage = "Ticket created successfully!"
	StatusUpdatedMessage = "Ticket status updated successfully!"
	ReplyAddedMessage    = "Reply added successfully!"
)

// Dispatcher runs mutations against the API.
type Dispatcher struct {
	api    API
	tokens TokenSource
	store  Reloader
	log    zerolog.Logger
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	API    API
	Tokens TokenSource
	Store  Reloader
	Logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("actions: api is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("actions: token source is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("actions: store is required")
	}
	return &Dispatcher{api: opts.API, tokens: opts.Tokens, store: opts.Store, log: opts.Logger}, nil
}

// CreateTicket submits a new ticket and reloads the cache. It returns the
// message to show the user.
func (d *Dispatcher) CreateTicket(ctx context.Context, t api.NewTicket) (string, error) {
	token := d.tokens.Token()
	if token == "" {
		return "", api.ErrNoToken
	}
	if strings.TrimSpace(t.Subject) == "" {
		return "", fmt.Errorf("actions: subject is required")
	}
	if strings.TrimSpace(t.Category) == "" {
		return "", fmt.Errorf("actions: category is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return "", fmt.Errorf("actions: description is required")
	}
	msg, err := d.api.CreateTicket(ctx, token, t)
	if err != nil {
		return "", err
	}
	d.log.Info().Str("api_message", msg).Str("subject", t.Subject).Str("category", t.Category).Msg("ticket created")
	return TicketCreatedMessage, d.reload(ctx, token)
}

// ChangeStatus sets a ticket's status and reloads the cache.
func (d *Dispatcher) ChangeStatus(ctx context.Context, id models.ID, status models.Status) (string, error) {
	token := d.tokens.Token()
	if token == "" {
		return "", api.ErrNoToken
	}
	if id == "" {
		return "", fmt.Errorf("actions: ticket id is required")
	}
	if !status.Valid() {
		return "", fmt.Errorf("actions: invalid status %q", status)
	}
	msg, err := d.api.UpdateStatus(ctx, token, id, status)
	if err != nil {
		return "", err
	}
	d.log.Info().Str("api_message", msg).Str("ticket", string(id)).Str("status", string(status)).Msg("ticket status changed")
	return StatusUpdatedMessage, d.reload(ctx, token)
}

// AddReply posts a reply and reloads the cache. The reply is not added
// to the cache locally.
func (d *Dispatcher) AddReply(ctx context.Context, id models.ID, message string) (string, error) {
	token := d.tokens.Token()
	if token == "" {
		return "", api.ErrNoToken
	}
	if id == "" {
		return "", fmt.Errorf("actions: ticket id is required")
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("actions: message is required")
	}
	msg, err := d.api.AddReply(ctx, token, id, message)
	if err != nil {
		return "", err
	}
	d.log.Info().Str("api_message", msg).Str("ticket", string(id)).Msg("reply added")
	return ReplyAddedMessage, d.reload(ctx, token)
}

// reload refreshes the cache. A failed reload does not undo the mutation,
// so it is wrapped and returned alongside the success message.
func (d *Dispatcher) reload(ctx context.Context, token string) error {
	if err := d.store.LoadAll(ctx, token); err != nil {
		d.log.Warn().Err(err).Msg("actions: reload after mutation failed")
		return fmt.Errorf("actions: reload: %w", err)
	}
	return nil
}

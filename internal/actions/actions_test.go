package actions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/models"
)

type fakeAPI struct {
	calls     []string
	lastToken string
	lastNew   api.NewTicket
	lastID    models.ID
	lastState models.Status
	lastReply string
	msg       string
	err       error
}

func (f *fakeAPI) CreateTicket(ctx context.Context, token string, t api.NewTicket) (string, error) {
	f.calls = append(f.calls, "create")
	f.lastToken, f.lastNew = token, t
	return f.msg, f.err
}

func (f *fakeAPI) UpdateStatus(ctx context.Context, token string, id models.ID, status models.Status) (string, error) {
	f.calls = append(f.calls, "status")
	f.lastToken, f.lastID, f.lastState = token, id, status
	return f.msg, f.err
}

func (f *fakeAPI) AddReply(ctx context.Context, token string, id models.ID, message string) (string, error) {
	f.calls = append(f.calls, "reply")
	f.lastToken, f.lastID, f.lastReply = token, id, message
	return f.msg, f.err
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

type countingReloader struct {
	loads int
	token string
	err   error
}

func (r *countingReloader) LoadAll(ctx context.Context, token string) error {
	r.loads++
	r.token = token
	return r.err
}

func newTestDispatcher(t *testing.T, a API, token string, r Reloader) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherOpts{API: a, Tokens: staticToken(token), Store: r, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func validTicket() api.NewTicket {
	return api.NewTicket{Subject: "Printer", Category: "Hardware", Description: "Jammed"}
}

func TestNewDispatcher_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts DispatcherOpts
		want string
	}{
		{"no api", DispatcherOpts{Tokens: staticToken("t"), Store: &countingReloader{}}, "api is required"},
		{"no tokens", DispatcherOpts{API: &fakeAPI{}, Store: &countingReloader{}}, "token source is required"},
		{"no store", DispatcherOpts{API: &fakeAPI{}, Tokens: staticToken("t")}, "store is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMissingToken_NoNetworkCall(t *testing.T) {
	a := &fakeAPI{}
	r := &countingReloader{}
	d := newTestDispatcher(t, a, "", r)
	ctx := context.Background()

	if _, err := d.CreateTicket(ctx, validTicket()); !errors.Is(err, api.ErrNoToken) {
		t.Errorf("CreateTicket err = %v", err)
	}
	if _, err := d.ChangeStatus(ctx, "1", models.StatusResolved); !errors.Is(err, api.ErrNoToken) {
		t.Errorf("ChangeStatus err = %v", err)
	}
	if _, err := d.AddReply(ctx, "1", "hi"); !errors.Is(err, api.ErrNoToken) {
		t.Errorf("AddReply err = %v", err)
	}
	if len(a.calls) != 0 || r.loads != 0 {
		t.Errorf("calls=%v loads=%d, want none", a.calls, r.loads)
	}
	if got := api.UserMessage(api.ErrNoToken, ""); got != api.NoTokenMessage {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestMissingToken_TakesPrecedenceOverValidation(t *testing.T) {
	a := &fakeAPI{}
	d := newTestDispatcher(t, a, "", &countingReloader{})
	ctx := context.Background()

	if _, err := d.CreateTicket(ctx, api.NewTicket{}); !errors.Is(err, api.ErrNoToken) {
		t.Errorf("CreateTicket err = %v, want ErrNoToken", err)
	}
	if _, err := d.ChangeStatus(ctx, "", "Pending"); !errors.Is(err, api.ErrNoToken) {
		t.Errorf("ChangeStatus err = %v, want ErrNoToken", err)
	}
	if _, err := d.AddReply(ctx, "1", "  "); !errors.Is(err, api.ErrNoToken) {
		t.Errorf("AddReply err = %v, want ErrNoToken", err)
	}
	if len(a.calls) != 0 {
		t.Errorf("calls = %v, want none", a.calls)
	}
}

func TestCreateTicket_ReloadsOnSuccess(t *testing.T) {
	a := &fakeAPI{}
	r := &countingReloader{}
	d := newTestDispatcher(t, a, "tok", r)

	msg, err := d.CreateTicket(context.Background(), validTicket())
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if msg != TicketCreatedMessage {
		t.Errorf("msg = %q", msg)
	}
	if a.lastToken != "tok" || a.lastNew.Subject != "Printer" {
		t.Errorf("api got token=%q ticket=%+v", a.lastToken, a.lastNew)
	}
	if r.loads != 1 || r.token != "tok" {
		t.Errorf("reloads=%d token=%q", r.loads, r.token)
	}
}

func TestCreateTicket_RequiredFields(t *testing.T) {
	a := &fakeAPI{}
	d := newTestDispatcher(t, a, "tok", &countingReloader{})
	for _, nt := range []api.NewTicket{
		{Category: "c", Description: "d"},
		{Subject: "s", Description: "d"},
		{Subject: "s", Category: "c", Description: "  "},
	} {
		if _, err := d.CreateTicket(context.Background(), nt); err == nil {
			t.Errorf("expected validation error for %+v", nt)
		}
	}
	if len(a.calls) != 0 {
		t.Errorf("no API calls expected, got %v", a.calls)
	}
}

func TestChangeStatus(t *testing.T) {
	a := &fakeAPI{msg: "Status updated"}
	r := &countingReloader{}
	d := newTestDispatcher(t, a, "tok", r)

	msg, err := d.ChangeStatus(context.Background(), "42", models.StatusInProgress)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if msg != StatusUpdatedMessage {
		t.Errorf("msg = %q", msg)
	}
	if a.lastID != "42" || a.lastState != models.StatusInProgress || r.loads != 1 {
		t.Errorf("id=%q status=%q loads=%d", a.lastID, a.lastState, r.loads)
	}

	if _, err := d.ChangeStatus(context.Background(), "42", "Done"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestChangeStatus_FailureLeavesStateUnchanged(t *testing.T) {
	a := &fakeAPI{err: &api.APIError{Op: "update status", Status: http.StatusForbidden, Message: "Access denied"}}
	r := &countingReloader{}
	d := newTestDispatcher(t, a, "tok", r)

	_, err := d.ChangeStatus(context.Background(), "1", models.StatusClosed)
	if err == nil || api.UserMessage(err, "") != "Access denied" {
		t.Fatalf("err = %v", err)
	}
	if r.loads != 0 {
		t.Error("no reload expected on failure")
	}
}

func TestAddReply_CallsNetworkThenReloads(t *testing.T) {
	a := &fakeAPI{}
	r := &countingReloader{}
	d := newTestDispatcher(t, a, "tok", r)

	msg, err := d.AddReply(context.Background(), "3", "On it")
	if err != nil {
		t.Fatalf("AddReply: %v", err)
	}
	if msg != ReplyAddedMessage || a.lastReply != "On it" || r.loads != 1 {
		t.Errorf("msg=%q reply=%q loads=%d", msg, a.lastReply, r.loads)
	}

	if _, err := d.AddReply(context.Background(), "3", " "); err == nil {
		t.Error("expected error for empty message")
	}
}

func TestReloadFailureIsReported(t *testing.T) {
	a := &fakeAPI{}
	r := &countingReloader{err: errors.New("list failed")}
	d := newTestDispatcher(t, a, "tok", r)

	msg, err := d.AddReply(context.Background(), "3", "x")
	if msg != ReplyAddedMessage {
		t.Errorf("msg = %q, mutation still succeeded", msg)
	}
	if err == nil || !strings.Contains(err.Error(), "actions: reload") {
		t.Errorf("err = %v", err)
	}
}

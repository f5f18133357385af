package tickets

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/models"
	"github.com/zulandar/quickdesk/internal/notify"
)

// --- Fakes ---

type fakeFetcher struct {
	mu      sync.Mutex
	tickets []models.Ticket
	err     error
	calls   int
}

func (f *fakeFetcher) ListTickets(ctx context.Context, token string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Ticket, len(f.tickets))
	copy(out, f.tickets)
	return out, nil
}

func (f *fakeFetcher) set(tickets []models.Ticket, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets, f.err = tickets, err
}

type recordingPublisher struct {
	got []notify.Notification
}

func (p *recordingPublisher) Publish(ctx context.Context, n notify.Notification) notify.Notification {
	n.ID = uint64(len(p.got) + 1)
	p.got = append(p.got, n)
	return n
}

func sampleTickets() []models.Ticket {
	return []models.Ticket{
		{ID: "1", Subject: "Login issue", Description: "Cannot sign in", Category: "Account", Status: models.StatusOpen},
		{ID: "2", Subject: "Printer jam", Description: "Third floor LOGIN kiosk", Category: "Hardware", Status: models.StatusResolved,
			AssignedTo: &models.Person{ID: "agent-1", Name: "Ana"}},
		{ID: "3", Subject: "VPN drops", Description: "Every hour", Category: "Network", Status: models.StatusInProgress,
			AssignedTo: &models.Person{ID: "agent-1", Name: "Ana"}},
		{ID: "4", Subject: "New laptop", Description: "Onboarding", Category: "Hardware", Status: models.StatusOpen},
	}
}

func newTestStore(t *testing.T, f Fetcher, p Publisher) *Store {
	t.Helper()
	s, err := NewStore(StoreOpts{Fetcher: f, Publisher: p, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func ids(tickets []models.Ticket) []models.ID {
	out := make([]models.ID, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

// --- Filter ---

func TestFilter(t *testing.T) {
	all := sampleTickets()
	tests := []struct {
		name string
		c    Criteria
		want []models.ID
	}{
		{"empty criteria returns everything in order", Criteria{}, []models.ID{"1", "2", "3", "4"}},
		{"status exact", Criteria{Status: models.StatusResolved}, []models.ID{"2"}},
		{"category exact", Criteria{Category: "Hardware"}, []models.ID{"2", "4"}},
		{"category is case sensitive", Criteria{Category: "hardware"}, []models.ID{}},
		{"search subject case-insensitive", Criteria{Search: "login"}, []models.ID{"1", "2"}},
		{"search description", Criteria{Search: "every HOUR"}, []models.ID{"3"}},
		{"conjunctive", Criteria{Status: models.StatusOpen, Category: "Hardware"}, []models.ID{"4"}},
		{"no match", Criteria{Search: "zzz"}, []models.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(all, tt.c))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_EmptyCriteriaEqualsInput(t *testing.T) {
	all := sampleTickets()
	if got := Filter(all, Criteria{}); !reflect.DeepEqual(got, all) {
		t.Error("empty criteria must return the full set unchanged")
	}
}

func TestCriteria_IsZero(t *testing.T) {
	if !(Criteria{}).IsZero() {
		t.Error("zero criteria")
	}
	if (Criteria{Search: "x"}).IsZero() {
		t.Error("search set")
	}
}

func TestComputeStats(t *testing.T) {
	st := ComputeStats(sampleTickets(), "agent-1")
	want := Stats{Total: 4, Open: 2, Resolved: 1, AssignedToMe: 2}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	if got := ComputeStats(sampleTickets(), "").AssignedToMe; got != 0 {
		t.Errorf("empty user id assigned = %d", got)
	}
}

func TestStatusChanges(t *testing.T) {
	prev := []models.Ticket{
		{ID: "1", Status: models.StatusOpen},
		{ID: "2", Status: models.StatusOpen},
		{ID: "3", Status: models.StatusResolved},
		{ID: "4", Status: models.StatusOpen},
	}
	next := []models.Ticket{
		{ID: "1", Status: models.StatusResolved},   // announced
		{ID: "2", Status: models.StatusInProgress}, // silent
		{ID: "3", Status: models.StatusClosed},     // announced
		{ID: "4", Status: models.StatusOpen},       // unchanged
		{ID: "5", Status: models.StatusResolved},   // new, ignored
	}
	got := ids(StatusChanges(prev, next))
	if !reflect.DeepEqual(got, []models.ID{"1", "3"}) {
		t.Errorf("StatusChanges = %v", got)
	}
}

// --- Store ---

func TestNewStore_RequiresFetcher(t *testing.T) {
	if _, err := NewStore(StoreOpts{}); err == nil {
		t.Error("expected error")
	}
}

func TestLoadAll_ReplacesCacheAndResetsFilter(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	s.ApplyFilter(Criteria{Status: models.StatusOpen})

	if err := s.LoadAll(context.Background(), "tok"); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(s.Tickets()) != 4 || len(s.Filtered()) != 4 {
		t.Errorf("tickets=%d filtered=%d", len(s.Tickets()), len(s.Filtered()))
	}
	if !s.Criteria().IsZero() {
		t.Errorf("criteria = %+v, want reset", s.Criteria())
	}
}

func TestLoadAll_FailureKeepsCache(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	if err := s.LoadAll(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}

	f.set(nil, errors.New("boom"))
	if err := s.LoadAll(context.Background(), "tok"); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Tickets()) != 4 {
		t.Errorf("cache changed on failure: %d tickets", len(s.Tickets()))
	}
}

func TestPoll_UserRoleGetsResolvedNotification(t *testing.T) {
	f := &fakeFetcher{tickets: []models.Ticket{{ID: "1", Subject: "Login issue", Status: models.StatusOpen}}}
	pub := &recordingPublisher{}
	s := newTestStore(t, f, pub)
	sess := &models.Session{Token: "tok", User: models.User{ID: "u1", Role: models.RoleUser}}
	if err := s.LoadAll(context.Background(), sess.Token); err != nil {
		t.Fatal(err)
	}

	f.set([]models.Ticket{{ID: "1", Subject: "Login issue", Status: models.StatusResolved}}, nil)
	sent := s.Poll(context.Background(), sess)

	if len(sent) != 1 || len(pub.got) != 1 {
		t.Fatalf("sent=%d published=%d, want 1", len(sent), len(pub.got))
	}
	if pub.got[0].Style != notify.StyleSuccess || pub.got[0].TicketID != "1" {
		t.Errorf("notification = %+v", pub.got[0])
	}
	if got, _ := s.Find("1"); got.Status != models.StatusResolved {
		t.Errorf("cache not replaced: %s", got.Status)
	}
}

func TestPoll_ClosedIsInfo(t *testing.T) {
	f := &fakeFetcher{tickets: []models.Ticket{{ID: "9", Subject: "X", Status: models.StatusResolved}}}
	pub := &recordingPublisher{}
	s := newTestStore(t, f, pub)
	sess := &models.Session{Token: "tok", User: models.User{Role: models.RoleUser}}
	_ = s.LoadAll(context.Background(), "tok")

	f.set([]models.Ticket{{ID: "9", Subject: "X", Status: models.StatusClosed}}, nil)
	s.Poll(context.Background(), sess)
	if len(pub.got) != 1 || pub.got[0].Style != notify.StyleInfo {
		t.Errorf("published = %+v", pub.got)
	}
}

func TestPoll_ElevatedRoleIsSilent(t *testing.T) {
	for _, role := range []models.Role{models.RoleAgent, models.RoleAdmin} {
		f := &fakeFetcher{tickets: []models.Ticket{{ID: "1", Status: models.StatusOpen}}}
		pub := &recordingPublisher{}
		s := newTestStore(t, f, pub)
		sess := &models.Session{Token: "tok", User: models.User{Role: role}}
		_ = s.LoadAll(context.Background(), "tok")

		f.set([]models.Ticket{{ID: "1", Status: models.StatusResolved}}, nil)
		if sent := s.Poll(context.Background(), sess); len(sent) != 0 || len(pub.got) != 0 {
			t.Errorf("%s: got %d notifications", role, len(pub.got))
		}
		if got, _ := s.Find("1"); got.Status != models.StatusResolved {
			t.Errorf("%s: cache not replaced", role)
		}
	}
}

func TestPoll_KeepsCriteria(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	sess := &models.Session{Token: "tok", User: models.User{Role: models.RoleAgent}}
	_ = s.LoadAll(context.Background(), "tok")
	s.ApplyFilter(Criteria{Category: "Hardware"})

	more := append(sampleTickets(), models.Ticket{ID: "5", Category: "Hardware", Status: models.StatusOpen})
	f.set(more, nil)
	s.Poll(context.Background(), sess)

	if s.Criteria().Category != "Hardware" {
		t.Errorf("criteria lost: %+v", s.Criteria())
	}
	if got := ids(s.Filtered()); !reflect.DeepEqual(got, []models.ID{"2", "4", "5"}) {
		t.Errorf("filtered = %v", got)
	}
}

func TestPoll_ErrorIsSwallowed(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	_ = s.LoadAll(context.Background(), "tok")

	f.set(nil, errors.New("network down"))
	sent := s.Poll(context.Background(), &models.Session{Token: "tok", User: models.User{Role: models.RoleUser}})
	if sent != nil {
		t.Errorf("sent = %v", sent)
	}
	if len(s.Tickets()) != 4 {
		t.Error("cache should survive a failed poll")
	}
}

func TestPoll_NoSessionDoesNothing(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestStore(t, f, nil)
	s.Poll(context.Background(), nil)
	if f.calls != 0 {
		t.Errorf("fetch calls = %d", f.calls)
	}
}

// gatedFetcher blocks requests for the "slow" token until released.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedFetcher) ListTickets(ctx context.Context, token string) ([]models.Ticket, error) {
	if token == "slow" {
		close(g.started)
		<-g.release
		return []models.Ticket{{ID: "old"}}, nil
	}
	return []models.Ticket{{ID: "new"}}, nil
}

func TestLoadAll_StaleCompletionIsDiscarded(t *testing.T) {
	g := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestStore(t, g, nil)

	done := make(chan error)
	go func() { done <- s.LoadAll(context.Background(), "slow") }()
	<-g.started

	if err := s.LoadAll(context.Background(), "fast"); err != nil {
		t.Fatal(err)
	}
	close(g.release)
	if err := <-done; err != nil {
		t.Fatalf("stale load returned error: %v", err)
	}

	if got := ids(s.Tickets()); !reflect.DeepEqual(got, []models.ID{"new"}) {
		t.Errorf("tickets = %v, newer snapshot must win", got)
	}
}

// orderedFetcher answers per token and holds gated tokens until released.
type orderedFetcher struct {
	responses map[string][]models.Ticket
	gates     map[string]chan struct{}
	started   chan string
}

func newOrderedFetcher() *orderedFetcher {
	return &orderedFetcher{
		responses: make(map[string][]models.Ticket),
		gates:     make(map[string]chan struct{}),
		started:   make(chan string, 8),
	}
}

func (o *orderedFetcher) ListTickets(ctx context.Context, token string) ([]models.Ticket, error) {
	o.started <- token
	if g, ok := o.gates[token]; ok {
		<-g
	}
	return append([]models.Ticket(nil), o.responses[token]...), nil
}

func TestPoll_FinishingBeforeOverlappingReloadStillNotifies(t *testing.T) {
	o := newOrderedFetcher()
	o.responses["init"] = []models.Ticket{{ID: "1", Subject: "Login issue", Status: models.StatusOpen}}
	o.responses["poll"] = []models.Ticket{{ID: "1", Subject: "Login issue", Status: models.StatusResolved}}
	o.responses["reload"] = []models.Ticket{{ID: "1", Subject: "Login issue", Status: models.StatusResolved}}
	o.gates["poll"] = make(chan struct{})
	o.gates["reload"] = make(chan struct{})
	pub := &recordingPublisher{}
	s := newTestStore(t, o, pub)

	if err := s.LoadAll(context.Background(), "init"); err != nil {
		t.Fatal(err)
	}
	<-o.started

	sess := &models.Session{Token: "poll", User: models.User{ID: "u1", Role: models.RoleUser}}
	polled := make(chan []notify.Notification)
	go func() { polled <- s.Poll(context.Background(), sess) }()
	<-o.started

	loaded := make(chan error)
	go func() { loaded <- s.LoadAll(context.Background(), "reload") }()
	<-o.started

	close(o.gates["poll"])
	if sent := <-polled; len(sent) != 1 {
		t.Errorf("poll sent %d notifications, want 1", len(sent))
	}
	close(o.gates["reload"])
	if err := <-loaded; err != nil {
		t.Fatal(err)
	}

	if len(pub.got) != 1 || pub.got[0].TicketID != "1" {
		t.Errorf("published = %+v", pub.got)
	}
	if got, _ := s.Find("1"); got.Status != models.StatusResolved {
		t.Errorf("cache status = %s, want Resolved", got.Status)
	}
}

func TestLoadAll_FailedNewerLoadKeepsOlderResult(t *testing.T) {
	g := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	failing := &failAfterGate{gatedFetcher: g}
	s := newTestStore(t, failing, nil)

	done := make(chan error)
	go func() { done <- s.LoadAll(context.Background(), "slow") }()
	<-g.started

	if err := s.LoadAll(context.Background(), "fast"); err == nil {
		t.Fatal("expected fast load to fail")
	}
	close(g.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := ids(s.Tickets()); !reflect.DeepEqual(got, []models.ID{"old"}) {
		t.Errorf("tickets = %v, the only successful load must be applied", got)
	}
}

// failAfterGate fails every request except the gated "slow" one.
type failAfterGate struct {
	*gatedFetcher
}

func (f *failAfterGate) ListTickets(ctx context.Context, token string) ([]models.Ticket, error) {
	if token == "slow" {
		return f.gatedFetcher.ListTickets(ctx, token)
	}
	return nil, errors.New("boom")
}

// logoutOnRead clears the store right after handing out the session, as
// a logout landing between the read and the fetch would.
type logoutOnRead struct {
	sess  *models.Session
	store *Store
}

func (l *logoutOnRead) Current() *models.Session {
	sess := l.sess
	l.store.Reset()
	return sess
}

func TestPollCurrent_LogoutAfterSessionReadLeavesCacheEmpty(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	pub := &recordingPublisher{}
	s := newTestStore(t, f, pub)
	src := &logoutOnRead{
		sess:  &models.Session{Token: "tok", User: models.User{ID: "u1", Role: models.RoleUser}},
		store: s,
	}

	if sent := s.PollCurrent(context.Background(), src); sent != nil {
		t.Errorf("sent = %+v, want nil", sent)
	}
	if len(s.Tickets()) != 0 || len(s.Filtered()) != 0 {
		t.Errorf("cache = %v, want empty after logout", ids(s.Tickets()))
	}
	if len(pub.got) != 0 {
		t.Errorf("published = %+v", pub.got)
	}
}

type staticSource struct{ sess *models.Session }

func (s staticSource) Current() *models.Session { return s.sess }

func TestPollCurrent_NoSessionSkipsFetch(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	if sent := s.PollCurrent(context.Background(), staticSource{}); sent != nil {
		t.Errorf("sent = %+v", sent)
	}
	if f.calls != 0 {
		t.Errorf("calls = %d, want 0", f.calls)
	}
	if s.tracker.Pending(ListKey) != 0 {
		t.Errorf("pending = %d, want 0", s.tracker.Pending(ListKey))
	}
}

func TestReset(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	_ = s.LoadAll(context.Background(), "tok")
	s.ApplyFilter(Criteria{Search: "vpn"})

	s.Reset()
	if len(s.Tickets()) != 0 || len(s.Filtered()) != 0 || !s.Criteria().IsZero() {
		t.Error("Reset should empty cache and criteria")
	}
	if s.Stats("x") != (Stats{}) {
		t.Error("stats should be zero after reset")
	}
}

func TestFindAndCategories(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	_ = s.LoadAll(context.Background(), "tok")

	if tk, ok := s.Find("3"); !ok || tk.Subject != "VPN drops" {
		t.Errorf("Find(3) = %+v, %v", tk, ok)
	}
	if _, ok := s.Find("99"); ok {
		t.Error("Find(99) should miss")
	}
	if got := s.Categories(); !reflect.DeepEqual(got, []string{"Account", "Hardware", "Network"}) {
		t.Errorf("Categories = %v", got)
	}
}

func TestTickets_ReturnsCopy(t *testing.T) {
	f := &fakeFetcher{tickets: sampleTickets()}
	s := newTestStore(t, f, nil)
	_ = s.LoadAll(context.Background(), "tok")
	got := s.Tickets()
	got[0].Subject = "mutated"
	if tk, _ := s.Find("1"); tk.Subject != "Login issue" {
		t.Error("Tickets must return a copy")
	}
}

// Package apitest provides an in-memory help-desk API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/quickdesk/internal/models"
)

type account struct {
	password string
	user     models.User
}

type failure struct {
	status  int
	message string
}

// Server is a fake help-desk API. Users see only their own tickets;
// agents and admins see all of them.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	accounts map[string]account // email -> account
	tokens   map[string]models.User
	tickets  []models.Ticket
	nextID   int
	failures map[string]failure // "METHOD /path" -> next response
	hits     map[string]int
}

// NewServer starts a Server. Call Close when done.
func NewServer() *Server {
	s := &Server{
		accounts: make(map[string]account),
		tokens:   make(map[string]models.User),
		failures: make(map[string]failure),
		hits:     make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("GET /api/tickets", s.authed(s.list))
	mux.HandleFunc("POST /api/tickets", s.authed(s.create))
	mux.HandleFunc("PATCH /api/tickets/{id}/status", s.authed(s.status))
	mux.HandleFunc("POST /api/tickets/{id}/reply", s.authed(s.reply))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	s.srv = httptest.NewServer(s.intercept(mux))
	return s
}

// URL is the API base URL, ending in /api.
func (s *Server) URL() string { return s.srv.URL + "/api" }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// AddUser registers credentials and returns the bearer token login will
// issue for them.
func (s *Server) AddUser(email, password string, u models.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account{password: password, user: u}
	token := "token-" + string(u.ID)
	s.tokens[token] = u
	return token
}

// AddTicket stores t, assigning an id when it has none.
func (s *Server) AddTicket(t models.Ticket) models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		s.nextID++
		t.ID = models.ID(strconv.Itoa(s.nextID))
	}
	if t.Status == "" {
		t.Status = models.StatusOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = models.Timestamp{Time: time.Now().UTC()}
	}
	s.tickets = append(s.tickets, t)
	return t.ID
}

// SetStatus changes a ticket's status as another user would.
func (s *Server) SetStatus(id models.ID, status models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			s.tickets[i].Status = status
		}
	}
}

// Ticket returns the server's copy of a ticket.
func (s *Server) Ticket(id models.ID) (models.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// FailNext makes the next request matching method and path (relative to
// /api, e.g. "/tickets") fail with status and a {message} body.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" /api"+path] = failure{status: status, message: message}
}

// Hits returns how many requests reached method and path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" /api"+path]
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.hits[key]++
		f, ok := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()
		if ok {
			writeJSON(w, f.status, map[string]string{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h func(http.ResponseWriter, *http.Request, models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		u, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is invalid"})
			return
		}
		h(w, r, u)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request"})
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[body.Email]
	s.mu.Unlock()
	if !ok || acct.password != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": "token-" + string(acct.user.ID), "user": acct.user})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string      `json:"name"`
		Email    string      `json:"email"`
		Password string      `json:"password"`
		Role     models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request"})
		return
	}
	s.mu.Lock()
	_, exists := s.accounts[body.Email]
	id := models.ID("user-" + strconv.Itoa(len(s.accounts)+1))
	s.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
		return
	}
	s.AddUser(body.Email, body.Password, models.User{ID: id, Name: body.Name, Role: body.Role})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, u models.User) {
	s.mu.Lock()
	out := make([]models.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if u.Role == models.RoleUser && t.CreatedBy.ID != u.ID {
			continue
		}
		out = append(out, t)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, u models.User) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid form"})
		return
	}
	t := models.Ticket{
		Subject:     r.FormValue("subject"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		Priority:    r.FormValue("priority"),
		CreatedBy:   models.Person{ID: u.ID, Name: u.Name},
	}
	if _, hdr, err := r.FormFile("attachment"); err == nil {
		t.Attachment = hdr.Filename
	}
	id := s.AddTicket(t)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Ticket created successfully", "ticket_id": string(id)})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, u models.User) {
	if u.Role == models.RoleUser {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Access denied"})
		return
	}
	var body struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid status"})
		return
	}
	id := models.ID(r.PathValue("id"))
	if _, ok := s.Ticket(id); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Ticket not found"})
		return
	}
	s.SetStatus(id, body.Status)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ticket status updated successfully"})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, u models.User) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Message is required"})
		return
	}
	id := models.ID(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			s.tickets[i].Replies = append(s.tickets[i].Replies, models.Reply{
				User:      models.Person{ID: u.ID, Name: u.Name},
				Message:   body.Message,
				CreatedAt: models.Timestamp{Time: time.Now().UTC()},
			})
			writeJSON(w, http.StatusOK, map[string]string{"message": "Reply added successfully"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Ticket not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

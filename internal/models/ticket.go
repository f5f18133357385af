package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Status is the workflow state of a ticket.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Slug returns the lowercase, hyphenated form used for badge classes
// (e.g. "in-progress").
func (s Status) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}

// ParseStatus matches a status case-insensitively, accepting either the
// display form ("In Progress") or the slug ("in-progress").
func ParseStatus(v string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(v))
	for _, s := range AllStatuses {
		if norm == strings.ToLower(string(s)) || norm == s.Slug() {
			return s, nil
		}
	}
	return "", fmt.Errorf("models: unknown status %q", v)
}

// ID is an identifier the API may send as either a JSON string or a number.
type ID string

// UnmarshalJSON accepts "abc", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("models: id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Person is the {id, name} reference the API embeds for creators,
// assignees and reply authors.
type Person struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either an object or a bare id. Some backends send
// created_by as the creator's id only; the name is then left empty.
func (p *Person) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var id ID
		if err := id.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("models: person: %w", err)
		}
		*p = Person{ID: id}
		return nil
	}
	type plain Person
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("models: person: %w", err)
	}
	*p = Person(v)
	return nil
}

// DisplayName returns the name, or "Unknown" when the API did not send one.
func (p Person) DisplayName() string {
	if p.Name == "" {
		return "Unknown"
	}
	return p.Name
}

// Timestamp decodes the time formats help-desk backends emit: RFC 3339,
// the HTTP date format, and naive ISO 8601 without a zone (read as UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	http.TimeFormat,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON parses any of the supported layouts; an empty string or
// null yields the zero time.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Unix seconds.
		var secs float64
		if numErr := json.Unmarshal(data, &secs); numErr != nil {
			return fmt.Errorf("models: timestamp: %w", err)
		}
		ts.Time = time.Unix(int64(secs), 0).UTC()
		return nil
	}
	if raw == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("models: timestamp: unrecognised format %q", raw)
}

// MarshalJSON always writes RFC 3339.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(strconv.Quote(ts.UTC().Format(time.RFC3339))), nil
}

// Ticket is a support request as returned by GET /tickets.
type Ticket struct {
	ID          ID        `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority,omitempty"`
	Status      Status    `json:"status"`
	CreatedBy   Person    `json:"created_by"`
	AssignedTo  *Person   `json:"assigned_to,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	Replies     []Reply   `json:"replies"`
	Attachment  string    `json:"attachment,omitempty"`
}

// AssignedToUser reports whether the ticket is assigned to the given user id.
func (t Ticket) AssignedToUser(userID ID) bool {
	return t.AssignedTo != nil && userID != "" && t.AssignedTo.ID == userID
}

// Reply is one message in a ticket's thread. Replies are append-only.
type Reply struct {
	User      Person    `json:"user"`
	Message   string    `json:"message"`
	CreatedAt Timestamp `json:"created_at"`
}

package tickets

import (
	"strings"

	"github.com/zulandar/quickdesk/internal/models"
)

// Criteria narrows the ticket list. Empty fields match everything.
type Criteria struct {
	Status   models.Status `form:"status"`
	Category string        `form:"category"`
	Search   string        `form:"search"`
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c.Status == "" && c.Category == "" && c.Search == ""
}

// Filter returns the tickets matching all of c, in their original order.
// Status and category match exactly; search is a case-insensitive
// substring of the subject or the description.
func Filter(tickets []models.Ticket, c Criteria) []models.Ticket {
	search := strings.ToLower(c.Search)
	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if c.Status != "" && t.Status != c.Status {
			continue
		}
		if c.Category != "" && t.Category != c.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Subject), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Stats are the dashboard counters.
type Stats struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Resolved     int `json:"resolved"`
	AssignedToMe int `json:"assigned_to_me"`
}

// ComputeStats counts tickets for the dashboard. AssignedToMe counts
// tickets assigned to userID.
func ComputeStats(tickets []models.Ticket, userID models.ID) Stats {
	st := Stats{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case models.StatusOpen:
			st.Open++
		case models.StatusResolved:
			st.Resolved++
		}
		if t.AssignedToUser(userID) {
			st.AssignedToMe++
		}
	}
	return st
}

// StatusChanges compares two snapshots by ticket id and returns the
// tickets from next whose status changed to Resolved or Closed. Tickets
// absent from prev are ignored.
func StatusChanges(prev, next []models.Ticket) []models.Ticket {
	before := make(map[models.ID]models.Status, len(prev))
	for _, t := range prev {
		before[t.ID] = t.Status
	}
	var changed []models.Ticket
	for _, t := range next {
		old, ok := before[t.ID]
		if !ok || old == t.Status {
			continue
		}
		if t.Status == models.StatusResolved || t.Status == models.StatusClosed {
			changed = append(changed, t)
		}
	}
	return changed
}

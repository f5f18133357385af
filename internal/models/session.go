package models

import (
	"strings"
	"time"
)

// Role is a user's access tier. Only "user" versus anything else matters
// to the client.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Elevated reports whether the role may change ticket status.
func (r Role) Elevated() bool {
	return r != RoleUser
}

// Label returns the role with its first letter capitalised ("Agent").
func (r Role) Label() string {
	if r == "" {
		return ""
	}
	s := string(r)
	return strings.ToUpper(s[:1]) + s[1:]
}

// User is the identity returned by the login endpoint and persisted as
// the userData entry.
type User struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Session pairs a bearer token with the user it was issued for. Token
// expiry is not tracked locally.
type Session struct {
	Token string
	User  User
}

// Persisted client-state keys.
const (
	KeyAuthToken = "authToken"
	KeyUserData  = "userData"
)

// StoredValue is one persisted client-state entry (authToken, userData).
type StoredValue struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

package api

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNoToken is returned before any network call when an authenticated
// operation is attempted without a bearer token.
var ErrNoToken = errors.New("api: no auth token")

// NoTokenMessage is shown when ErrNoToken stops an operation.
const NoTokenMessage = "Authentication token not found. Please log in again."

// NetworkErrorMessage is shown for any request that failed to complete.
const NetworkErrorMessage = "Network error. Please try again."

// DatastoreOutageMessage replaces server messages that indicate the API's
// backing database is unreachable.
const DatastoreOutageMessage = "The help desk database is unavailable right now. Please try again later or contact your administrator."

// APIError is a non-2xx response from the help-desk API.
type APIError struct {
	Op      string
	Status  int
	Message string // server-provided message, may be empty
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("api: %s: status %d: %s", e.Op, e.Status, e.Message)
}

// TransportError wraps a request that never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var datastoreOutagePattern = regexp.MustCompile(`(?i)(mongo|serverselectiontimeout|database|datastore|db connection)`)

// IsDatastoreOutage reports whether a server message describes a backend
// database failure.
func IsDatastoreOutage(msg string) bool {
	return datastoreOutagePattern.MatchString(msg)
}

// UserMessage maps err to the text shown to the user. Server messages are
// passed through verbatim except for datastore outages; transport failures
// become NetworkErrorMessage; anything else without a message uses fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoToken) {
		return NoTokenMessage
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Message == "":
			return fallback
		case IsDatastoreOutage(apiErr.Message):
			return DatastoreOutageMessage
		default:
			return apiErr.Message
		}
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return NetworkErrorMessage
	}
	return fallback
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// RequestError is returned for every non-2xx response. Retry policy and
// auth handling branch on the numeric Status field, never on the rendered
// message text.
type RequestError struct {
	// Status is the HTTP status code of the response.
	Status int
	// Body is the raw response body text, possibly truncated.
	Body string
}

// Error renders "<status>: <message>". When the body is JSON carrying a
// "message" or "error" field, that field is used; otherwise the raw body,
// falling back to the generic status text for empty bodies.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message())
}

// Message extracts the most useful human-readable message from the response.
func (e *RequestError) Message() string {
	body := strings.TrimSpace(e.Body)
	if gjson.Valid(body) {
		if msg := gjson.Get(body, "message"); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
		if msg := gjson.Get(body, "error"); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}
	if body != "" {
		return body
	}
	return http.StatusText(e.Status)
}

// IsServerError reports whether the failure is in the server-error class,
// the only class eligible for retry.
func (e *RequestError) IsServerError() bool { return e.Status >= 500 }

// IsClientError reports whether the failure is a 4xx.
func (e *RequestError) IsClientError() bool { return e.Status >= 400 && e.Status < 500 }

// AsRequestError unwraps err into a *RequestError if one is in the chain.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	re, ok := AsRequestError(err)
	return ok && re.Status == http.StatusUnauthorized
}

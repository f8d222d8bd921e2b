package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestError_Message(t *testing.T) {
	cases := []struct {
		name string
		err  RequestError
		want string
	}{
		{"json message field", RequestError{Status: 400, Body: `{"message":"bad input"}`}, "bad input"},
		{"json error field", RequestError{Status: 400, Body: `{"error":"nope"}`}, "nope"},
		{"message preferred over error", RequestError{Status: 400, Body: `{"error":"e","message":"m"}`}, "m"},
		{"plain text body", RequestError{Status: 500, Body: "boom"}, "boom"},
		{"empty body falls back to status text", RequestError{Status: 503, Body: ""}, "Service Unavailable"},
		{"json without known fields", RequestError{Status: 422, Body: `{"fields":["x"]}`}, `{"fields":["x"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Message())
			assert.Equal(t, fmt.Sprintf("%d: %s", tc.err.Status, tc.want), tc.err.Error())
		})
	}
}

func TestRequestError_Classification(t *testing.T) {
	server := &RequestError{Status: 500}
	assert.True(t, server.IsServerError())
	assert.False(t, server.IsClientError())

	client := &RequestError{Status: 404}
	assert.False(t, client.IsServerError())
	assert.True(t, client.IsClientError())
}

func TestAsRequestError(t *testing.T) {
	var err error = &RequestError{Status: 500, Body: "boom"}
	wrapped := fmt.Errorf("fetch cards: %w", err)

	re, ok := AsRequestError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 500, re.Status)

	_, ok = AsRequestError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(&RequestError{Status: 401}))
	assert.False(t, IsUnauthorized(&RequestError{Status: 403}))
	assert.False(t, IsUnauthorized(fmt.Errorf("plain")))
}

package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var errs Errors
	require.True(t, errors.As(err, &errs))
	fields := make([]string, len(errs))
	for i, fe := range errs {
		fields[i] = fe.Field
	}
	return fields
}

func TestLogin(t *testing.T) {
	cases := []struct {
		name       string
		email      string
		password   string
		wantFields []string
	}{
		{"valid", "a@b.com", "secret1", nil},
		{"bad email", "not-an-email", "secret1", []string{"email"}},
		{"short password", "a@b.com", "12345", []string{"password"}},
		{"both invalid", "", "", []string{"email", "password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Login(tc.email, tc.password)
			if tc.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.wantFields, fieldsOf(t, err))
		})
	}
}

func TestRegister(t *testing.T) {
	cases := []struct {
		name       string
		userName   string
		email      string
		password   string
		confirm    string
		wantFields []string
	}{
		{"valid", "Ash", "a@b.com", "secret1", "secret1", nil},
		{"short name", "A", "a@b.com", "secret1", "secret1", []string{"name"}},
		{"whitespace name", "  ", "a@b.com", "secret1", "secret1", []string{"name"}},
		{"mismatched passwords", "Ash", "a@b.com", "secret1", "secret2", []string{"confirmPassword"}},
		{"everything wrong", "", "x", "123", "456", []string{"name", "email", "password", "confirmPassword"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Register(tc.userName, tc.email, tc.password, tc.confirm)
			if tc.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.wantFields, fieldsOf(t, err))
		})
	}
}

func TestNewTrade(t *testing.T) {
	assert.NoError(t, NewTrade([]string{"c1"}, []string{"c2"}))

	err := NewTrade(nil, []string{"c2"})
	assert.Equal(t, []string{"offeringCards"}, fieldsOf(t, err))

	err = NewTrade([]string{"c1"}, nil)
	assert.Equal(t, []string{"receivingCards"}, fieldsOf(t, err))

	err = NewTrade(nil, nil)
	assert.Equal(t, []string{"offeringCards", "receivingCards"}, fieldsOf(t, err))
}

func TestErrors_Message(t *testing.T) {
	err := Errors{
		{Field: "email", Message: "please enter a valid email address"},
		{Field: "password", Message: "password must be at least 6 characters"},
	}
	assert.Equal(t, "email: please enter a valid email address; password: password must be at least 6 characters", err.Error())
}

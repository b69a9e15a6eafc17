package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("INVALID_FIELD: No such column 'Foo__c'"), false},
		{"explicit", Transient(errors.New("overloaded"), 503), true},
		{"wrapped explicit", fmt.Errorf("sf: insert: %w", Transient(errors.New("slow down"), 429)), true},
		{"net timeout", fmt.Errorf("post: %w", timeoutErr{}), true},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"salesforce row lock", errors.New("UNABLE_TO_LOCK_ROW: unable to obtain exclusive access"), true},
		{"salesforce limit", errors.New("REQUEST_LIMIT_EXCEEDED: TotalRequests Limit exceeded."), true},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransient_NilStaysNil(t *testing.T) {
	assert.NoError(t, Transient(nil, 500))
}

func TestTransientError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := Transient(base, 502)
	assert.ErrorIs(t, err, base)
	var te *TransientError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 502, te.StatusCode)
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404} {
		assert.False(t, IsTransientStatus(code), code)
	}
}

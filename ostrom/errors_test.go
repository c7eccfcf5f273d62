package ostrom

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		auth   bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusInternalServerError, false},
		{http.StatusTooManyRequests, false},
		{0, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("fetching contracts: %w", &APIError{StatusCode: tt.status, Endpoint: "/contracts"})
			assert.Equal(t, tt.auth, errors.Is(err, ErrAuth))
			assert.Equal(t, !tt.auth, errors.Is(err, ErrConnection))
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &APIError{StatusCode: 0, Endpoint: "/me", Message: "request failed", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/me")
	assert.Contains(t, err.Error(), "boom")
}

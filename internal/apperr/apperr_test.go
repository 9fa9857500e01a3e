package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		ErrUnauthorized:   http.StatusUnauthorized,
		ErrForbidden:      http.StatusForbidden,
		ErrNotFound:       http.StatusNotFound,
		ErrRateLimited:    http.StatusTooManyRequests,
		ErrLockContention: http.StatusConflict,
		ErrConflict:       http.StatusConflict,
		ErrConfiguration:  http.StatusInternalServerError,
	}
	for sentinel, want := range cases {
		require.Equal(t, want, HTTPStatus(sentinel))
	}
}

func TestHTTPStatusSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("resolve tenant: %w", fmt.Errorf("%w: company not accessible", ErrForbidden))
	require.Equal(t, http.StatusForbidden, HTTPStatus(err))
}

func TestUnclassifiedErrorIsInternal(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("driver: bad connection")))
}

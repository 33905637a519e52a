package provider_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"vnmarket/internal/provider"
)

func TestErrorIsKind(t *testing.T) {
	t.Parallel()

	// Arrange: wrap a classified error twice.
	base := provider.Errorf(provider.KindRateLimited, "vci", "history", "slow down")
	err := fmt.Errorf("fetching VCB: %w", base)

	// Assert: the kind is found through the chain, other kinds are not.
	require.ErrorIs(t, err, provider.KindRateLimited)
	require.NotErrorIs(t, err, provider.KindNotFound)

	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "vci", pe.Provider)
	require.Equal(t, "vci history: rate limited: slow down", pe.Error())
}

func TestErrorMessageWithStatus(t *testing.T) {
	t.Parallel()

	err := &provider.Error{Kind: provider.KindServer, Provider: "tcbs", Op: "company", Status: 502}
	require.Equal(t, "tcbs company: server error (status 502)", err.Error())
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want provider.Kind
	}{
		{"nil", nil, provider.KindUnknown},
		{"classified", provider.NewError(provider.KindDecode, "", "", nil), provider.KindDecode},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), provider.KindCanceled},
		{"deadline", context.DeadlineExceeded, provider.KindTimeout},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, provider.KindNetwork},
		{"dns timeout", &net.DNSError{IsTimeout: true}, provider.KindTimeout},
		{"plain", errors.New("boom"), provider.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, provider.KindOf(tt.err))
		})
	}
}

func TestKindForStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, provider.KindInvalidInput, provider.KindForStatus(http.StatusBadRequest))
	require.Equal(t, provider.KindAccessDenied, provider.KindForStatus(http.StatusForbidden))
	require.Equal(t, provider.KindNotFound, provider.KindForStatus(http.StatusNotFound))
	require.Equal(t, provider.KindRateLimited, provider.KindForStatus(http.StatusTooManyRequests))
	require.Equal(t, provider.KindServer, provider.KindForStatus(http.StatusBadGateway))
	require.Equal(t, provider.KindServer, provider.KindForStatus(http.StatusTeapot))
}

func TestKindTransient(t *testing.T) {
	t.Parallel()

	require.True(t, provider.KindRateLimited.Transient())
	require.True(t, provider.KindServer.Transient())
	require.False(t, provider.KindInvalidInput.Transient())
	require.False(t, provider.KindCanceled.Transient())
	require.False(t, provider.KindNotFound.Transient())
}

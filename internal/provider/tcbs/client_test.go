package tcbs_test

import (
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"vnmarket/internal/httpx"
	"vnmarket/internal/provider"
	"vnmarket/internal/provider/tcbs"
)

var testNow = time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC)

// newClient returns a client wired to the mock with fast retries.
func newClient(t *testing.T, httpClient tcbs.HTTPClient, opts ...tcbs.Option) *tcbs.Client {
	t.Helper()
	base := []tcbs.Option{
		tcbs.WithHTTPClient(httpClient),
		tcbs.WithRetryPolicy(httpx.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
		tcbs.WithLogger(log.New(io.Discard, "", 0)),
		tcbs.WithClock(func() time.Time { return testNow }),
	}
	client, err := tcbs.NewClient(append(base, opts...)...)
	require.NoError(t, err)
	return client
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := provider.ParseDate(s)
	require.NoError(t, err)
	return d
}

type reply struct {
	status int
	body   string
}

// router answers each request by its path. Unknown paths fail the test.
func router(t *testing.T, routes map[string]reply) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		r, ok := routes[req.URL.Path]
		if !ok {
			t.Errorf("unexpected request %s", req.URL)
			return respond(http.StatusNotFound, ``), nil
		}
		return respond(r.status, r.body), nil
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: defaults should return a client.
	client, err := tcbs.NewClient()
	require.NoErrorf(t, err, "unexpected error: %v", err)
	require.NotNilf(t, client, "unexpected nil client")
	require.Equal(t, "tcbs", client.Name())
}

func TestNewClientInvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := tcbs.NewClient(tcbs.WithBaseURL("/relative"))
	require.Error(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: custom and browser headers are both sent.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "https://www.tcbs.com.vn/", req.Header.Get("Referer"))
			require.Equal(t, "https://www.tcbs.com.vn", req.Header.Get("Origin"))
			require.Equal(t, httpx.DefaultUserAgent, req.Header.Get("User-Agent"))
			return respond(http.StatusOK, fixture(t, "bars_daily.json")), nil
		}).
		Times(1)

	// Arrange: create a new client with a custom header.
	client := newClient(t, httpClient,
		tcbs.WithHeader(http.Header{"foo": []string{"bar"}}),
		tcbs.WithRandomAgent(false),
		tcbs.WithBaseURL("http://localhost:8080/"))

	// Act
	_, err := client.History(t.Context(), "VCB", provider.HistoryQuery{Start: date(t, "2024-01-02"), End: date(t, "2024-01-05")})
	require.NoError(t, err)
}

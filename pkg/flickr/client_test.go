package flickr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "flico/pkg/errors"
	"flico/pkg/flickr/flickrtest"
	"flico/pkg/logger"
	"flico/pkg/retry"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func fastRetry() *retry.Config {
	return &retry.Config{MaxAttempts: 3, Backoff: &retry.ConstantBackoff{}}
}

func newMockClient(t *testing.T, handler func(req *http.Request) (*http.Response, error)) (*Client, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	client := NewClient(Config{APIKey: "key", Retry: fastRetry()}, log)
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{handler: handler}})
	return client, log
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "key"}, nil)

	assert.Equal(t, BaseURL, client.cfg.BaseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.NotNil(t, client.limiter)
	assert.NotNil(t, client.retry)
	assert.NotNil(t, client.logger)
}

func TestGetInstitutions(t *testing.T) {
	server := flickrtest.NewServer()
	defer server.Close()
	server.AddInstitution("8623220@N02", "The Library of Congress", 10)
	server.AddInstitution("25053835@N03", "", 0)

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Retry: fastRetry()}, logger.NewTestLogger())
	institutions, err := client.GetInstitutions(context.Background())
	require.NoError(t, err)
	require.Len(t, institutions, 2)

	assert.Equal(t, "8623220@N02", institutions[0].ID)
	assert.Equal(t, "The Library of Congress", institutions[0].Name)
	assert.Equal(t, "unknown", institutions[1].Name)
	assert.Equal(t, []string{"key"}, server.APIKeys())
}

func TestCountPhotosAcceptsStringTotals(t *testing.T) {
	server := flickrtest.NewServer()
	defer server.Close()
	server.AddInstitution("a@N01", "A", 4711)

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Retry: fastRetry()}, logger.NewTestLogger())
	total, err := client.CountPhotos(context.Background(), "a@N01")
	require.NoError(t, err)
	assert.Equal(t, 4711, total)
}

func TestCountPhotosQuery(t *testing.T) {
	var seen url.Values
	client, _ := newMockClient(t, func(req *http.Request) (*http.Response, error) {
		seen = req.URL.Query()
		return newResponse(http.StatusOK, `{"photos":{"page":1,"pages":12,"perpage":1,"total":12,"photo":[]},"stat":"ok"}`), nil
	})

	total, err := client.CountPhotos(context.Background(), "u@N01")
	require.NoError(t, err)
	assert.Equal(t, 12, total)

	assert.Equal(t, MethodSearchPhotos, seen.Get("method"))
	assert.Equal(t, "u@N01", seen.Get("user_id"))
	assert.Equal(t, "true", seen.Get("is_commons"))
	assert.Equal(t, "1", seen.Get("per_page"))
	assert.Equal(t, "json", seen.Get("format"))
	assert.Equal(t, "1", seen.Get("nojsoncallback"))
	assert.Empty(t, seen.Get("api_sig"))
}

func TestGetPublicPhotos(t *testing.T) {
	server := flickrtest.NewServer()
	defer server.Close()
	server.AddInstitution("a@N01", "A", 3)
	server.SetPages("a@N01", flickrtest.Photos("1", "2"), flickrtest.Photos("3"))

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Retry: fastRetry()}, logger.NewTestLogger())

	page, err := client.GetPublicPhotos(context.Background(), "a@N01", 1, 500)
	require.NoError(t, err)
	assert.Len(t, page.Photos, 2)
	assert.Equal(t, 3, int(page.Total))

	page, err = client.GetPublicPhotos(context.Background(), "a@N01", 3, 500)
	require.NoError(t, err)
	assert.Empty(t, page.Photos)
	assert.Equal(t, []int{1, 3}, server.PageRequests("a@N01"))
}

func TestAPIErrorsAreClassified(t *testing.T) {
	server := flickrtest.NewServer()
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Retry: fastRetry()}, logger.NewTestLogger())

	server.FailNext(MethodGetPublicPhotos, errs.CodeRateLimited, "Rate limit exceeded")
	_, err := client.GetPublicPhotos(context.Background(), "a@N01", 1, 500)
	require.Error(t, err)
	assert.True(t, errs.IsRateLimited(err))
	assert.Equal(t, 1, server.Calls(MethodGetPublicPhotos), "rate limits are not retried by the client")

	server.FailNext(MethodGetPublicPhotos, 2, "Unknown user")
	_, err = client.GetPublicPhotos(context.Background(), "a@N01", 1, 500)
	require.Error(t, err)
	assert.False(t, errs.IsRateLimited(err))
	assert.True(t, errs.IsAPIError(err))

	server.FailNextHTTP(MethodGetPublicPhotos, http.StatusTooManyRequests)
	_, err = client.GetPublicPhotos(context.Background(), "a@N01", 1, 500)
	assert.True(t, errs.IsRateLimited(err))
}

func TestFailedStatIsNotRetried(t *testing.T) {
	server := flickrtest.NewServer()
	defer server.Close()
	server.AddInstitution("a@N01", "A", 1)
	server.SetPages("a@N01", flickrtest.Photos("1"))

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Retry: fastRetry()}, logger.NewTestLogger())

	server.FailNext(MethodGetPublicPhotos, 105, "Service currently unavailable")
	_, err := client.GetPublicPhotos(context.Background(), "a@N01", 1, 500)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAPI, errs.TypeOf(err))
	assert.Equal(t, 1, server.Calls(MethodGetPublicPhotos))
	assert.Equal(t, []int{1}, server.PageRequests("a@N01"))
}

func TestServerErrorsAreRetried(t *testing.T) {
	attempts := 0
	client, _ := newMockClient(t, func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return newResponse(http.StatusBadGateway, ""), nil
		}
		return newResponse(http.StatusOK, `{"institutions":{"institution":[]},"stat":"ok"}`), nil
	})

	institutions, err := client.GetInstitutions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, institutions)
	assert.Equal(t, 3, attempts)
}

func TestNetworkErrorsExhaustRetries(t *testing.T) {
	attempts := 0
	client, log := newMockClient(t, func(req *http.Request) (*http.Response, error) {
		attempts++
		return nil, errors.New("connection refused")
	})

	_, err := client.CountPhotos(context.Background(), "u@N01")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
	assert.True(t, log.HasMessage("API call failed"))
}

func TestMalformedJSON(t *testing.T) {
	attempts := 0
	client, log := newMockClient(t, func(req *http.Request) (*http.Response, error) {
		attempts++
		return newResponse(http.StatusOK, `<html>oops</html>`), nil
	})

	_, err := client.GetInstitutions(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
	assert.Equal(t, 1, attempts)
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestSignedRequests(t *testing.T) {
	var seen url.Values
	log := logger.NewTestLogger()
	client := NewClient(Config{APIKey: "key", APISecret: "secret", Retry: fastRetry()}, log)
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		seen = req.URL.Query()
		return newResponse(http.StatusOK, `{"institutions":{"institution":[]},"stat":"ok"}`), nil
	}}})

	_, err := client.GetInstitutions(context.Background())
	require.NoError(t, err)

	sig := seen.Get("api_sig")
	require.NotEmpty(t, sig)
	assert.Equal(t, Sign("secret", seen), sig)
}

func TestCancelledContext(t *testing.T) {
	client, _ := newMockClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetInstitutions(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

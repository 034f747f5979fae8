package flickr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "flico/pkg/errors"
	"flico/pkg/logger"
	"flico/pkg/metrics"
	"flico/pkg/models"
	"flico/pkg/ratelimit"
	"flico/pkg/retry"
)

// Config holds what the client needs to talk to the API
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Limiter paces calls; nil means unlimited
	Limiter ratelimit.Limiter
	// Retry governs transport retries; nil uses retry.DefaultConfig
	Retry *retry.Config
}

// Client represents a Flickr REST API client
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a new Flickr API client
func NewClient(cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "flico/1.0"
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    limiter,
		retry:      retryCfg,
		logger:     log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// GetInstitutions lists every Flickr Commons member.
func (c *Client) GetInstitutions(ctx context.Context) ([]models.Institution, error) {
	var resp institutionsResponse
	if err := c.call(ctx, MethodGetInstitutions, InstitutionsParams(), &resp); err != nil {
		return nil, err
	}

	institutions := resp.toModels()
	c.logger.DebugWithFields("fetched institutions", map[string]interface{}{
		"count": len(institutions),
	})
	return institutions, nil
}

// CountPhotos returns the remote total of public photos for an institution.
func (c *Client) CountPhotos(ctx context.Context, userID string) (int, error) {
	var resp photosResponse
	if err := c.call(ctx, MethodSearchPhotos, CountParams(userID), &resp); err != nil {
		return 0, err
	}
	return int(resp.Photos.Total), nil
}

// GetPublicPhotos fetches one page of an institution's public photos.
func (c *Client) GetPublicPhotos(ctx context.Context, userID string, page, perPage int) (*PhotoPage, error) {
	var resp photosResponse
	if err := c.call(ctx, MethodGetPublicPhotos, PublicPhotosParams(userID, page, perPage), &resp); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("fetched photo page", map[string]interface{}{
		"user_id": userID,
		"page":    page,
		"photos":  len(resp.Photos.Photos),
		"total":   int(resp.Photos.Total),
	})
	return &resp.Photos, nil
}

// call performs one API method and decodes the payload into target.
// Only the request is retried; a failed stat or an undecodable payload is
// returned as is.
func (c *Client) call(ctx context.Context, method string, params url.Values, target interface{}) error {
	reqURL, err := c.buildURL(method, params)
	if err != nil {
		return err
	}

	start := time.Now()
	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, reqURL)
	}, c.retry)
	if err == nil {
		err = c.decode(body, target)
	}
	metrics.ObserveAPIRequest(method, outcome(err), time.Since(start))

	if err != nil {
		c.logger.WithError(err).WarnWithFields("API call failed", map[string]interface{}{
			"method": method,
		})
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Client) buildURL(method string, params url.Values) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.cfg.BaseURL, err)
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	query.Set("method", method)
	query.Set("api_key", c.cfg.APIKey)
	query.Set("format", "json")
	query.Set("nojsoncallback", "1")
	if c.cfg.APISecret != "" {
		query.Set("api_sig", Sign(c.cfg.APISecret, query))
	}

	base.RawQuery = query.Encode()
	return base.String(), nil
}

// fetch performs a GET request and returns the body of a 200 response
func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnWithFields("unexpected HTTP status", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil, errs.FromStatusCode(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}
	return body, nil
}

// decode checks the response envelope and unmarshals the payload
func (c *Client) decode(body []byte, target interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return c.parseError(body, err)
	}
	if env.Stat != "ok" {
		return errs.FromAPICode(env.Code, env.Message)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return c.parseError(body, err)
	}
	return nil
}

func (c *Client) parseError(body []byte, err error) error {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
		"error":        err.Error(),
		"body_preview": preview,
	})
	return &errs.Error{
		Type:    errs.ErrorTypeParsing,
		Message: fmt.Sprintf("failed to parse JSON: %v", err),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return string(errs.TypeOf(err))
	}
}

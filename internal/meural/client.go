package meural

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.meural.com/v0"

// Retry and backoff constants. Uploads are rate limited server-side, so
// the retry budget is deliberately small: a persistently failing item is
// skipped for the cycle rather than hammered.
const (
	maxRetries     = 3
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 15 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	apiVersion     = "3"
	userAgent      = "meural-sync/0.1"
)

// Client is an HTTP client for the Meural API. It handles authentication,
// retry with exponential backoff, pagination, and error classification.
// Methods are not safe for concurrent use; the engine is single-threaded
// by design.
type Client struct {
	baseURL      string
	httpClient   *http.Client // metadata calls, short timeout
	uploadClient *http.Client // upload calls, long timeout
	username     string
	password     string
	token        string
	logger       *slog.Logger

	// sleepFunc is called to wait between retries. Tests override this
	// to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration // metadata calls
	UploadTimeout time.Duration // upload calls
	VerifyTLS     bool
	Logger        *slog.Logger
}

// NewClient creates a Meural API client. The token is populated by
// Authenticate; every other call fails with ErrUnauthorized until then.
func NewClient(username, password string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	transport := http.DefaultTransport
	if !opts.VerifyTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // explicit operator opt-out
		}
	}

	return &Client{
		baseURL:      opts.BaseURL,
		httpClient:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		uploadClient: &http.Client{Timeout: opts.UploadTimeout, Transport: transport},
		username:     username,
		password:     password,
		logger:       opts.Logger,
		sleepFunc:    timeSleep,
	}
}

// request is a replayable HTTP request: the body is held as bytes so
// retries and the one-shot re-authentication can resend it.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	upload      bool // use the upload client and its longer timeout
}

// do executes a request with retry, returning the response body.
// Retryable statuses (408, 429, 5xx) and network errors are retried up to
// maxRetries with exponential backoff; 429 honors Retry-After. A 401 on an
// authenticated call triggers a single re-authentication before failing.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	var (
		attempt    int
		reauthed   bool
		transient  error
		retryAfter time.Duration
	)

	for {
		body, status, ra, err := c.doOnce(ctx, req)
		retryAfter = ra

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("meural: request canceled: %w", ctx.Err())
			}

			transient = err
		} else if status >= http.StatusOK && status < http.StatusMultipleChoices {
			return body, nil
		} else {
			if status == http.StatusUnauthorized && !reauthed && req.path != pathAuthenticate {
				reauthed = true

				c.logger.Info("token rejected, re-authenticating")

				if authErr := c.Authenticate(ctx); authErr != nil {
					return nil, authErr
				}

				continue
			}

			if !isRetryable(status) {
				return nil, &APIError{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
			}

			transient = &APIError{StatusCode: status, Message: string(body), Err: classifyStatus(status)}
		}

		if attempt >= maxRetries {
			return nil, fmt.Errorf("meural: %s %s failed after %d retries: %w",
				req.method, req.path, maxRetries, transient)
		}

		backoff := c.calcBackoff(attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}

		c.logger.Warn("retrying request",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", transient.Error()),
		)

		if err := c.sleepFunc(ctx, backoff); err != nil {
			return nil, fmt.Errorf("meural: request canceled: %w", err)
		}

		attempt++
	}
}

// doOnce executes a single HTTP request (no retry). It returns the body,
// status, and any Retry-After delay on an HTTP response, or an error on
// transport failure.
func (c *Client) doOnce(ctx context.Context, req request) ([]byte, int, time.Duration, error) {
	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("meural: creating request: %w", err)
	}

	httpReq.Header.Set("x-meural-api-version", apiVersion)
	httpReq.Header.Set("User-Agent", userAgent)

	if c.token != "" && req.path != pathAuthenticate {
		httpReq.Header.Set("Authorization", "Token "+c.token)
	}

	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	client := c.httpClient
	if req.upload {
		client = c.uploadClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("meural: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("meural: reading response from %s: %w", req.path, err)
	}

	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, convErr := strconv.Atoi(ra); convErr == nil && seconds > 0 {
			retryAfter = time.Duration(seconds) * time.Second
		}
	}

	return body, resp.StatusCode, retryAfter, nil
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

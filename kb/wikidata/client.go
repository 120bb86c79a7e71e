// Package wikidata executes read-only SPARQL queries against a Wikidata
// query service and yields typed rows lazily.
package wikidata

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/internal/httpclient"
	"github.com/teranos/softwaremap/logger"
)

// DefaultEndpoint is the public Wikidata Query Service
const DefaultEndpoint = "https://query.wikidata.org/sparql"

// Config holds query executor configuration
type Config struct {
	Endpoint          string
	Language          string             // label/description language, "" = en
	UserAgent         string             // required by WDQS policy
	Timeout           time.Duration      // per HTTP request
	RequestsPerMinute int                // 0 = unlimited
	MaxAttempts       int                // total attempts per query, < 1 = 1
	InitialBackoff    time.Duration      // doubled after every failed attempt
	MaxBackoff        time.Duration      // cap for backoff and Retry-After, 0 = uncapped
	AllowPrivate      bool               // allow loopback/private endpoints (local mirrors)
	HTTPClient        *httpclient.Client // overrides the fields above when set (tests)
	Logger            *zap.SugaredLogger // nil = nop logger
}

// Client runs SPARQL queries with pacing and bounded retry
type Client struct {
	endpoint       string
	language       string
	httpClient     *httpclient.Client
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *zap.SugaredLogger
	sleep          func(ctx context.Context, d time.Duration) error
}

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]+)*$`)

// ValidLanguage reports whether lang is safe to embed in a query as a language tag
func ValidLanguage(lang string) bool {
	return languagePattern.MatchString(lang)
}

// NewClient creates a query executor
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if !ValidLanguage(cfg.Language) {
		cfg.Language = "en"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.New(httpclient.Options{
			Timeout:           cfg.Timeout,
			UserAgent:         cfg.UserAgent,
			RequestsPerMinute: cfg.RequestsPerMinute,
			AllowPrivate:      cfg.AllowPrivate,
		})
	}

	return &Client{
		endpoint:       cfg.Endpoint,
		language:       cfg.Language,
		httpClient:     hc,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         log,
		sleep:          sleepContext,
	}
}

// Endpoint returns the SPARQL endpoint URL
func (c *Client) Endpoint() string { return c.endpoint }

// Language returns the label language used in queries
func (c *Client) Language() string { return c.language }

// attemptError carries the retry decision for one failed request
type attemptError struct {
	err        error
	retryable  bool
	retryAfter time.Duration
}

func (e *attemptError) Error() string { return e.err.Error() }

// execute sends query and returns the response with a 200 status, retrying
// transient failures. The caller closes the body.
func (c *Client) execute(ctx context.Context, query string) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		start := time.Now()
		resp, aerr := c.send(ctx, query)
		if aerr == nil {
			c.logger.Debugw("SPARQL query succeeded",
				logger.FieldEndpoint, c.endpoint,
				logger.FieldAttempt, attempt,
				logger.FieldDurationMS, time.Since(start).Milliseconds())
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "query cancelled")
		}
		if !aerr.retryable {
			return nil, aerr.err
		}

		lastErr = aerr.err
		c.logger.Warnw("SPARQL query failed",
			logger.FieldEndpoint, c.endpoint,
			logger.FieldAttempt, attempt,
			"max_attempts", c.maxAttempts,
			logger.FieldError, aerr.err)

		if attempt == c.maxAttempts {
			break
		}
		delay := c.backoff(attempt, aerr.retryAfter)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, errors.Wrap(err, "query cancelled during backoff")
		}
	}

	return nil, errors.Mark(
		errors.Wrapf(lastErr, "%s unreachable after %d attempts", c.endpoint, c.maxAttempts),
		errors.ErrEndpointUnreachable,
	)
}

// send performs one request and classifies any failure
func (c *Client) send(ctx context.Context, query string) (*http.Response, *attemptError) {
	form := url.Values{}
	form.Set("query", query)
	form.Set("format", "json")

	// POST keeps long VALUES lists out of the URL
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &attemptError{err: errors.NewInvalidRequestError("build request for %s: %v", c.endpoint, err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Blocked targets fail the same way every time
		retryable := !errors.Is(err, errors.ErrInvalidRequest)
		return nil, &attemptError{err: errors.Wrap(err, "send SPARQL request"), retryable: retryable}
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	statusErr := errors.Newf("SPARQL endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &attemptError{err: statusErr, retryable: true, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case resp.StatusCode >= 500:
		return nil, &attemptError{err: statusErr, retryable: true}
	case resp.StatusCode == http.StatusBadRequest:
		// WDQS answers 400 for query syntax errors: retrying cannot help
		return nil, &attemptError{err: errors.Mark(statusErr, errors.ErrInvalidRequest)}
	default:
		return nil, &attemptError{err: errors.Mark(statusErr, errors.ErrEndpointUnreachable)}
	}
}

// backoff returns the wait before the next attempt: initial * 2^(attempt-1),
// raised to Retry-After when the server asked for longer, capped at maxBackoff.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.initialBackoff * time.Duration(1<<(attempt-1))
	if retryAfter > delay {
		delay = retryAfter
	}
	if c.maxBackoff > 0 && delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package client is the typed HTTP client for the students service.
//
// Every remote capability is one method. Non-2xx responses and network
// failures come back as *TransportError; malformed success bodies come back
// as *codec.DecodeError. List is the exception to "return the error and
// nothing else": on failure it also hands back an empty slice so callers can
// keep rendering while they record the failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/aanand-mishra/students-sync/internal/codec"
	"github.com/aanand-mishra/students-sync/internal/types"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultSummarizeTimeout = 3 * time.Minute
	defaultMaxRetries       = 3
	defaultRetryWait  = 200 * time.Millisecond

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader carries a fresh id per request so service logs can be
	// correlated with client logs.
	RequestIDHeader = "X-Request-ID"

	userAgent    = "students-sync/1.0"
	studentsPath = "/students"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the root URL of the service, e.g. http://localhost:8080.
	BaseURL string
	// Timeout bounds each attempt of every call except Summarize.
	// Defaults to 30s.
	Timeout time.Duration
	// SummarizeTimeout bounds a Summarize call. Defaults to 3m.
	SummarizeTimeout time.Duration
	// MaxRetries is the number of attempts for reads that fail at the
	// network level without timing out. 1 disables retries. Defaults to 3.
	MaxRetries int
	// RetryWait is the initial backoff between attempts. Defaults to 200ms.
	RetryWait time.Duration
	// HTTPClient overrides the underlying client. Its own Timeout, if any,
	// applies on top of the per-call timeouts above.
	HTTPClient *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to one students service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	cfg        Config
}

// New creates a client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client.New: BaseURL is required")
	}
	cfg.BaseURL = baseURL

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SummarizeTimeout <= 0 {
		cfg.SummarizeTimeout = defaultSummarizeTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With(slog.String("component", "client")),
		cfg:        cfg,
	}, nil
}

// List fetches the whole collection.
//
// On failure the returned slice is empty (never nil) and err describes what
// went wrong. Every other method returns a zero value with its error.
func (c *Client) List(ctx context.Context) ([]types.Student, error) {
	data, err := c.do(ctx, c.read(studentsPath))
	if err != nil {
		c.logger.Warn("list failed, returning empty collection", slog.String("error", err.Error()))
		return []types.Student{}, err
	}

	students, err := codec.DecodeList(data)
	if err != nil {
		c.logger.Warn("list body rejected, returning empty collection", slog.String("error", err.Error()))
		return []types.Student{}, fmt.Errorf("client.List: %w", err)
	}
	return students, nil
}

// Get fetches one student. A 404 matches ErrNotFound.
func (c *Client) Get(ctx context.Context, id int64) (types.Student, error) {
	data, err := c.do(ctx, c.read(studentPath(id)))
	if err != nil {
		return types.Student{}, err
	}
	return decodeStudent("client.Get", data)
}

// Create sends fields with age coerced to an integer and returns the record
// the service stored, including its assigned id.
func (c *Client) Create(ctx context.Context, fields types.StudentFields) (types.Student, error) {
	data, err := c.do(ctx, c.write(http.MethodPost, studentsPath, codec.Encode(fields)))
	if err != nil {
		return types.Student{}, err
	}
	return decodeStudent("client.Create", data)
}

// Update replaces the three mutable fields of student id.
func (c *Client) Update(ctx context.Context, id int64, fields types.StudentFields) (types.Student, error) {
	data, err := c.do(ctx, c.write(http.MethodPut, studentPath(id), codec.Encode(fields)))
	if err != nil {
		return types.Student{}, err
	}
	return decodeStudent("client.Update", data)
}

// Delete removes student id. Any response body is ignored.
func (c *Client) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, c.write(http.MethodDelete, studentPath(id), nil))
	return err
}

// Summarize asks the service to generate a summary for student id. This is
// the slowest call the service offers, and every attempt makes the service
// generate a new summary, so it is sent once under SummarizeTimeout.
func (c *Client) Summarize(ctx context.Context, id int64) (string, error) {
	data, err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    studentPath(id) + "/summary",
		timeout: c.cfg.SummarizeTimeout,
	})
	if err != nil {
		return "", err
	}

	text, err := codec.DecodeSummary(data)
	if err != nil {
		return "", fmt.Errorf("client.Summarize: %w", err)
	}
	return text, nil
}

func studentPath(id int64) string {
	return fmt.Sprintf("%s/%d", studentsPath, id)
}

func decodeStudent(op string, data []byte) (types.Student, error) {
	s, err := codec.Decode(data)
	if err != nil {
		return types.Student{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// request describes one remote call.
type request struct {
	method  string
	path    string
	body    any
	timeout time.Duration
	retry   bool
}

func (c *Client) read(path string) request {
	return request{method: http.MethodGet, path: path, timeout: c.cfg.Timeout, retry: true}
}

func (c *Client) write(method, path string, body any) request {
	return request{method: method, path: path, body: body, timeout: c.cfg.Timeout}
}

// do sends one request. Retryable reads that fail without a response and
// without timing out are retried with exponential backoff; everything else
// is sent exactly once.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	op := r.method + " " + r.path

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal %s body: %w", op, err)
		}
	}

	if !r.retry || c.cfg.MaxRetries <= 1 {
		return c.roundTrip(ctx, op, r, payload)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryWait

	attempt := 0
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		data, err := c.roundTrip(ctx, op, r, payload)
		if err == nil {
			return data, nil
		}

		var te *TransportError
		if errors.As(err, &te) && te.Reason == ReasonNetwork && ctx.Err() == nil && !isTimeout(err) {
			c.logger.Debug("retrying request",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)),
	)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &TransportError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	return data, nil
}

// isTimeout reports whether err is an attempt that ran out of time. The
// service may still be working on it, so it is not retried.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) roundTrip(ctx context.Context, op string, r request, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Reason: ReasonNetwork, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: op, Reason: ReasonNetwork, Err: err}
	}

	c.logger.Debug("request completed",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
		slog.String("request_id", req.Header.Get(RequestIDHeader)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}
	return data, nil
}

// Package projection is the client for the remote calculation service.
//
// Every call is bounded by a timeout and is never retried; a failed call is
// translated into one of the apperr request-outcome errors.
package projection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/iliamunaev/projection-pipeline/internal/apperr"
	"github.com/iliamunaev/projection-pipeline/internal/model"
	"github.com/iliamunaev/projection-pipeline/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultTimeout       = 30 * time.Second
	DefaultHealthTimeout = 5 * time.Second

	HealthEndpoint = "/health"
)

// Operation labels used for metrics and logs.
const (
	OpEvaluate       = "evaluate"
	OpCompareVariant = "compare_variant"
	OpHealth         = "health"
)

type operationKey struct{}

// WithOperation labels calls made with ctx, e.g. comparison variants.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom returns the label set by WithOperation, or "".
func OperationFrom(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}

func operation(ctx context.Context, fallback string) string {
	if op := OperationFrom(ctx); op != "" {
		return op
	}
	return fallback
}

// Client calls the calculation service over fasthttp.
type Client struct {
	baseURL       string
	http          *fasthttp.Client
	timeout       time.Duration
	healthTimeout time.Duration
	log           *slog.Logger
	metrics       *observability.Metrics
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call bound for evaluations.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHealthTimeout sets the bound for the health call.
func WithHealthTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records call outcomes on m.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient sets a custom fasthttp.Client.
func WithHTTPClient(hc *fasthttp.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &fasthttp.Client{Name: "projection-pipeline"},
		timeout:       DefaultTimeout,
		healthTimeout: DefaultHealthTimeout,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-call bound for evaluations.
func (c *Client) Timeout() time.Duration { return c.timeout }

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Evaluate runs one projection for s.
//
// The deadline is the client timeout or the ctx deadline, whichever is
// sooner. Once sent, the call runs to completion; ctx is not used to abort it.
func (c *Client) Evaluate(ctx context.Context, s model.Scenario) (model.ProjectionResult, error) {
	op := operation(ctx, OpEvaluate)
	payload := model.NewProjectionRequest(s)
	requestID := uuid.NewString()
	log := c.log.With("request_id", requestID, "operation", op)

	body, err := json.Marshal(payload)
	if err != nil {
		return model.ProjectionResult{}, fmt.Errorf("encode payload: %w", errors.Join(apperr.ErrUnknown, err))
	}

	start := time.Now()
	result, status, err := c.post(ctx, apperr.ProjectionEndpoint, requestID, body)
	dur := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = apperr.Kind(err)
		log.Error("projection request failed",
			"kind", outcome,
			"status", status,
			"error", err,
			"payload", payload,
			"duration", dur,
		)
	} else {
		log.Info("projection request complete", "status", status, "duration", dur)
	}
	c.metrics.ObserveRequest(op, outcome, dur)

	return result, err
}

func (c *Client) post(ctx context.Context, path, requestID string, body []byte) (model.ProjectionResult, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Request-Id", requestID)
	req.SetBody(body)

	if err := c.do(ctx, req, resp, c.timeout); err != nil {
		return model.ProjectionResult{}, 0, err
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return model.ProjectionResult{}, status, remoteError(status, resp.Body())
	}

	var wire model.ProjectionResponse
	if err := json.Unmarshal(resp.Body(), &wire); err != nil {
		return model.ProjectionResult{}, status, fmt.Errorf("decode response: %w", errors.Join(apperr.ErrUnknown, err))
	}
	return wire.Normalize(), status, nil
}

// Version fetches the service version from the health endpoint. An empty
// string means the service did not report one.
func (c *Client) Version(ctx context.Context) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + HealthEndpoint)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Request-Id", uuid.NewString())

	start := time.Now()
	err := c.do(ctx, req, resp, c.healthTimeout)
	if err == nil && resp.StatusCode() != fasthttp.StatusOK {
		err = remoteError(resp.StatusCode(), resp.Body())
	}

	var out healthBody
	if err == nil {
		if uerr := json.Unmarshal(resp.Body(), &out); uerr != nil {
			err = fmt.Errorf("decode health: %w", errors.Join(apperr.ErrUnknown, uerr))
		}
	}

	outcome := "ok"
	if err != nil {
		outcome = apperr.Kind(err)
	}
	c.metrics.ObserveRequest(OpHealth, outcome, time.Since(start))

	if err != nil {
		return "", err
	}
	return out.Version, nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: deadline already passed", apperr.ErrTimeout)
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps a transport error onto the request-outcome taxonomy.
func classify(err error) error {
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)

	case errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, fasthttp.ErrConnectionClosed),
		errors.Is(err, fasthttp.ErrNoFreeConns),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", apperr.ErrUnreachable, err)

	default:
		return fmt.Errorf("%w: %v", apperr.ErrUnknown, err)
	}
}

// remoteError builds the error for a non-2xx response. A string detail is
// surfaced verbatim; a missing endpoint is reported as such; anything else
// is unknown.
func remoteError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(eb.Detail, &detail); err == nil && detail != "" {
			return &apperr.RemoteError{Status: status, Detail: detail}
		}
	}
	if status == fasthttp.StatusNotFound {
		return &apperr.RemoteError{Status: status}
	}
	return fmt.Errorf("%w: status %d", apperr.ErrUnknown, status)
}

// Package supabase implements port.LedgerStore on top of Supabase
// PostgREST. Reads and writes go through a circuit breaker, retry with
// backoff and a bulkhead bounding concurrent outbound calls.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/infra/resilience"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:            cfg,
		logger:         logger,
	}
}

// StatusError is a non-2xx PostgREST response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// q escapes a value for use in a PostgREST filter.
func q(v string) string {
	return url.QueryEscape(v)
}

// read runs a GET through the breaker and retry loop and decodes the
// JSON array response into out.
func (c *Client) read(ctx context.Context, service, path string, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			if body == nil {
				body = []byte("[]")
			}
			if err := json.Unmarshal(body, out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s: %w", service, err))
			}
			return nil
		})
	})
	return c.wrap(ctx, service, err)
}

// write runs a mutating request through the breaker and retry loop.
// PATCH and DELETE filters make retries idempotent; POST bodies carry
// client-generated IDs so a replay conflicts instead of duplicating.
func (c *Client) write(ctx context.Context, service, method, path string, payload any) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, method, path, payload, "return=representation")
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, c.wrap(ctx, service, err)
	}
	return body, nil
}

func (c *Client) wrap(ctx context.Context, service string, err error) error {
	if err == nil {
		return nil
	}
	span := spanFrom(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return notFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: service}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// expectRows decodes a representation response and fails with
// ErrNotFound when the filter matched nothing.
func expectRows(body []byte, resource, id string) error {
	if len(body) == 0 {
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

// Ping checks PostgREST reachability.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	var rows []json.RawMessage
	return c.read(ctx, "supabase/ping", "bank_accounts?select=id&limit=1", &rows)
}

func attrID(key, id string) attribute.KeyValue {
	return attribute.String(key, id)
}

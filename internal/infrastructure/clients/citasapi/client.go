package citasapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// TokenSource supplies the bearer token of the active session. An empty
// token sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

// Token returns f()
func (f TokenFunc) Token() string { return f() }

// UnauthorizedHandler is invoked once for every 401 response
type UnauthorizedHandler func(ctx context.Context)

// HTTPClient talks to the appointment backend over its JSON API
type HTTPClient struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler
	metrics        *observability.Metrics
}

var _ providers.Backend = (*HTTPClient)(nil)

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource sets where the bearer token is read from
func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

// WithUnauthorizedHandler sets the hook run on 401 responses
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *HTTPClient) { c.onUnauthorized = h }
}

// WithMetrics enables request metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *HTTPClient) { c.metrics = m }
}

// NewClient creates a client for the API rooted at baseURL (for example http://localhost:3001/api)
func NewClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint joins path onto the base URL and encodes non-empty query values
func (c *HTTPClient) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		for k, v := range query {
			if len(v) == 0 || v[0] == "" {
				query.Del(k)
			}
		}
		if encoded := query.Encode(); encoded != "" {
			u += "?" + encoded
		}
	}
	return u
}

// doJSON performs one request and returns the normalized envelope of a 2xx response.
// route is the templated path used for span names and metric labels.
func (c *HTTPClient) doJSON(ctx context.Context, method, route, endpoint string, body interface{}) (*Envelope, error) {
	ctx, span := observability.StartSpan(ctx, "citasapi "+method+" "+route)
	defer span.End()

	requestID := uuid.NewString()
	observability.SetSpanAttributes(span,
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("request.id", requestID),
	)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	c.addHeaders(req, requestID, body != nil)

	logger := observability.LoggerFromContext(ctx).With().
		Str("method", method).
		Str("route", route).
		Str("request_id", requestID).
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordBackendCall(ctx, c.metrics, method, route, 0, time.Since(start))
		logger.Warn().Err(err).Msg("backend request failed")
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, route), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	observability.RecordBackendCall(ctx, c.metrics, method, route, resp.StatusCode, duration)
	observability.SetSpanAttributes(span, attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewNetworkError("failed to read response", err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("backend request completed")

	env, decodeErr := Normalize(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(env, resp.StatusCode)
		appErr := c.statusError(ctx, resp.StatusCode, msg)
		observability.RecordError(span, appErr)
		logger.Info().Int("status", resp.StatusCode).Str("error", msg).Msg("backend rejected request")
		return nil, appErr
	}

	if decodeErr != nil {
		observability.RecordError(span, decodeErr)
		return nil, apperrors.NewInternalError("malformed response from server", decodeErr)
	}

	if !env.Success {
		return nil, apperrors.NewRejectedError(resp.StatusCode, errorMessage(env, resp.StatusCode))
	}

	return env, nil
}

func (c *HTTPClient) addHeaders(req *http.Request, requestID string, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}
	}
}

// statusError maps a non-2xx status onto the error taxonomy
func (c *HTTPClient) statusError(ctx context.Context, status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return apperrors.NewUnauthorizedError(msg)
	case http.StatusConflict:
		return apperrors.NewConflictError(msg)
	case http.StatusNotFound:
		return apperrors.NewNotFoundError(msg)
	default:
		return apperrors.NewRejectedError(status, msg)
	}
}

func errorMessage(env *Envelope, status int) string {
	if env != nil {
		if msg := env.ErrorMessage(); msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// decode unmarshals the envelope data into out
func decode(env *Envelope, out interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return apperrors.NewInternalError("empty response from server", nil)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.NewInternalError("malformed response from server", err)
	}
	return nil
}

// Package gcm is a client for the Google Cloud Messaging HTTP endpoint.
//
// A Message is built from a Notification, recipients and delivery flags, then
// handed to Client.Send, which validates it, checks the gateway limits,
// posts it and classifies the answer:
//
//	msg := gcm.NewMessage(gcm.NewNotification("Hello", "World"), gcm.Single(regID))
//	resp, err := client.Send(ctx, msg)
//	var verr *gcm.ValidationError
//	switch {
//	case errors.As(err, &verr):
//		// verr.Errors lists what is wrong with msg
//	case err != nil:
//		// errors.Is(err, gcm.ErrAuthentication), gcm.ErrTooBigPayload, ...
//	default:
//		fmt.Println(resp.Body())
//	}
package gcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultEndpoint = "https://android.googleapis.com/gcm/send"
	DefaultTimeout  = 10 * time.Second

	MaxRecipients  = 1000
	MaxPayloadSize = 4096

	// retryDelay separates the first attempt from the single transport retry.
	retryDelay = 200 * time.Millisecond
	// maxBodySize bounds how much of a gateway answer is read.
	maxBodySize = 1 << 20
)

// Client sends messages to the gateway. It holds only its configuration and
// is safe for concurrent use.
type Client struct {
	endpoint       string
	apiKey         string
	httpClient     *http.Client
	timeout        time.Duration
	transportRetry bool
	logger         *slog.Logger
}

// Option configures a Client in NewClient.
type Option func(*Client)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient sets the client used for the POST. TLS and connection
// reuse settings belong on it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds a Send whose context has no deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTransportRetry controls the single retry after a transport failure.
// HTTP status answers are never retried.
func WithTransportRetry(enabled bool) Option {
	return func(c *Client) { c.transportRetry = enabled }
}

// WithLogger sets the logger for send and retry events. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a Client for apiKey with DefaultEndpoint and DefaultTimeout
// unless opts say otherwise.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:       DefaultEndpoint,
		apiKey:         apiKey,
		httpClient:     &http.Client{},
		timeout:        DefaultTimeout,
		transportRetry: true,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "GCMClient")
	return c
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Send validates msg, posts it and returns the gateway answer.
//
// A message that fails validation yields a *ValidationError and no request
// is made. Every other failure is one of the package errors, wrapped where
// extra context exists; see errors.go.
func (c *Client) Send(ctx context.Context, msg *Message) (*Response, error) {
	if errs := msg.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if c.apiKey == "" {
		return nil, ErrIllegalAPIKey
	}
	if err := checkRecipients(msg.To()); err != nil {
		return nil, err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("gcm: failed to marshal message: %w", err)
	}
	if len(body) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTooBigPayload, len(body))
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	code, respBody, err := c.post(ctx, body)
	if err != nil && c.transportRetry && ctx.Err() == nil {
		c.logger.Warn("GCM transport failed, retrying once", "err", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gcm: transport failed: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
		code, respBody, err = c.post(ctx, body)
	}
	if err != nil {
		return nil, fmt.Errorf("gcm: transport failed: %w", err)
	}

	if code != http.StatusOK {
		c.logger.Debug("GCM rejected request", "status", code)
		return nil, newStatusError(code, respBody)
	}

	c.logger.Debug("GCM accepted request", "recipients", msg.To().Len(), "bytes", len(body))
	return &Response{message: msg, body: respBody, statusCode: code}, nil
}

func (c *Client) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, string(b), nil
}

func checkRecipients(to Recipients) error {
	n := to.Len()
	switch {
	case n == 0:
		return ErrNoRecipients
	case n > MaxRecipients:
		return fmt.Errorf("%w: got %d", ErrTooManyRecipients, n)
	}
	for _, id := range to.IDs() {
		if id == "" {
			return ErrWrongRecipientID
		}
	}
	return nil
}

//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// dialKeepAlive is the TCP keep-alive period of idle-bounded transports.
const dialKeepAlive = 30 * time.Second

// ErrIdleTimeout is returned by a response body that made no progress for
// the configured idle timeout. It matches os.ErrDeadlineExceeded.
var ErrIdleTimeout = fmt.Errorf("no data received within idle timeout: %w", os.ErrDeadlineExceeded)

// Client wraps an http.Client with the settings of a fetch run.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client
	// userAgent is sent with every request when not empty.
	userAgent string
	// idleTimeout cancels a body that stops delivering data.
	idleTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithTimeout sets the total time limit of a request, body included.
// Zero leaves the request unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout >= 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithIdleTimeout bounds connecting, the TLS handshake, waiting for the
// response headers and every gap between body reads by timeout. Unlike
// WithTimeout, a transfer that keeps delivering data is never cut short.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}

		c.idleTimeout = timeout

		base, ok := c.httpClient.Transport.(*http.Transport)
		if c.httpClient.Transport == nil {
			base, ok = http.DefaultTransport.(*http.Transport)
		}

		if !ok {
			return
		}

		transport := base.Clone()
		transport.DialContext = (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: dialKeepAlive,
		}).DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout

		c.httpClient.Transport = transport
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHTTPClient replaces the underlying client. Options applied after it
// modify a copy, so the caller's client is never mutated.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.httpClient = &clone
		}
	}
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	// URL is the requested address.
	URL string
	// StatusCode is the numeric HTTP status.
	StatusCode int
	// Status is the status line, e.g. "404 Not Found".
	Status string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected http status %s", e.URL, e.Status)
}

// errURLRequired is returned when Get is called without a URL.
var errURLRequired = errors.New("url must be provided")

// NewClient creates a Client. Without options requests have no timeout.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Timeout returns the configured request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// Get issues a GET request. On a non-2xx status the body is closed and a
// *StatusError is returned; otherwise the caller owns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if rawURL == "" {
		return nil, errURLRequired
	}

	ctx, cancel := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		cancel(nil)

		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		cancel(nil)

		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_ = response.Body.Close()

		cancel(nil)

		return nil, &StatusError{
			URL:        rawURL,
			StatusCode: response.StatusCode,
			Status:     response.Status,
		}
	}

	response.Body = newIdleBody(ctx, cancel, response.Body, c.idleTimeout)

	return response, nil
}

// idleBody cancels its request when no Read completes within timeout.
type idleBody struct {
	ctx     context.Context //nolint:containedctx // Needed to report the cancel cause from Read.
	cancel  context.CancelCauseFunc
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	once    sync.Once
}

func newIdleBody(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, timeout time.Duration) *idleBody {
	b := &idleBody{
		ctx:     ctx,
		cancel:  cancel,
		body:    body,
		timeout: timeout,
	}

	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, func() {
			cancel(ErrIdleTimeout)
		})
	}

	return b
}

// Read implements io.Reader and restarts the idle deadline on progress.
func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 && b.timer != nil {
		b.timer.Reset(b.timeout)
	}

	if err != nil && !errors.Is(err, io.EOF) && errors.Is(context.Cause(b.ctx), ErrIdleTimeout) {
		return n, fmt.Errorf("%w (%s): %w", ErrIdleTimeout, b.timeout, err)
	}

	return n, err
}

// Close implements io.Closer and releases the request context.
func (b *idleBody) Close() error {
	err := b.body.Close()

	b.once.Do(func() {
		if b.timer != nil {
			b.timer.Stop()
		}

		b.cancel(nil)
	})

	return err
}

// IsStatusError reports whether err carries a *StatusError and returns it.
func IsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}

	return nil, false
}

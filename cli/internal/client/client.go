package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/metage/metage/pkg/estimatorv1"
	"github.com/metage/metage/pkg/types"
)

const (
	backoffInitial    = 200 * time.Millisecond
	backoffMax        = 2 * time.Second
	backoffMultiplier = 2.0

	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultHeader   = "x-api-key"
)

// Options configures a Client.
type Options struct {
	// Endpoint is the server's gRPC address (host:port).
	Endpoint string

	// APIKey is sent in Header on every call when non-empty.
	APIKey string
	Header string

	// CAFile enables TLS verified against the given PEM bundle. Empty means
	// plaintext.
	CAFile string

	// Timeout bounds a single attempt. Attempts bounds retries of transient
	// failures.
	Timeout  time.Duration
	Attempts int
}

func (o Options) withDefaults() Options {
	if o.Header == "" {
		o.Header = defaultHeader
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	return o
}

// Client calls metage.v1.Estimator on a remote metage-server.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn // nil when built with New
	opts Options
}

// Dial opens a connection to opts.Endpoint.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	creds, err := transportCreds(opts.CAFile)
	if err != nil {
		return nil, err
	}
	conn, err := grpc.DialContext(ctx, opts.Endpoint, grpc.WithTransportCredentials(creds)) //nolint:staticcheck // DialContext kept for grpc 1.62 compat
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", opts.Endpoint, err)
	}
	return &Client{cc: conn, conn: conn, opts: opts}, nil
}

// New wraps an existing connection.
func New(cc grpc.ClientConnInterface, opts Options) *Client {
	return &Client{cc: cc, opts: opts.withDefaults()}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Estimate sends req to the server. Transient failures (unavailable,
// deadline exceeded) are retried with exponential backoff; everything else,
// including InvalidArgument and Unauthenticated, is returned immediately.
func (c *Client) Estimate(ctx context.Context, req *types.EstimateRequest) (*estimatorv1.EstimateReply, error) {
	bo := newBackoff()
	var lastErr error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		reply, err := c.call(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if isPermanentError(err) || attempt == c.opts.Attempts {
			break
		}

		wait := bo.next()
		slog.Debug("client: transient error, will retry",
			"endpoint", c.opts.Endpoint,
			"attempt", attempt,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (c *Client) call(ctx context.Context, req *types.EstimateRequest) (*estimatorv1.EstimateReply, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	if c.opts.APIKey != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, c.opts.Header, c.opts.APIKey)
	}
	return estimatorv1.Invoke(callCtx, c.cc, req)
}

// isPermanentError reports whether err should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return false
	}
	return true
}

// transportCreds returns plaintext credentials, or TLS verified against the
// CA bundle in caFile.
func transportCreds(caFile string) (credentials.TransportCredentials, error) {
	if caFile == "" {
		return insecure.NewCredentials(), nil
	}
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("client: read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("client: no valid certs in ca file %q", caFile)
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

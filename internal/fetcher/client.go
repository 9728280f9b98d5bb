package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/mailharvest/internal/model"
)

const (
	// DefaultTimeout is the per-fetch deadline.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// DefaultUserAgent identifies the crawler.
	DefaultUserAgent = "mailharvest/1.0 (+https://github.com/nao1215/mailharvest)"

	// maxRedirects bounds redirect chains.
	maxRedirects = 10
)

// Client fetches pages over HTTP.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	httpClient *http.Client

	// timeout bounds each Fetch call, from dial to the last body byte.
	timeout time.Duration

	userAgent   string
	maxBodySize int64

	// proxyAddress is an optional SOCKS5 proxy in "host:port" format.
	proxyAddress string

	// cookie and headers are attached to every request.
	cookie  string
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-fetch deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets how many body bytes are read at most.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// WithProxy routes all requests through the SOCKS5 proxy at address.
// An empty address means direct connections.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithCookie attaches a raw cookie string (e.g., "session=abc") to every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithHeaders attaches extra headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// New creates a Client. It validates the proxy address but does not
// connect to it.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = DefaultMaxBodySize
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 25,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: c.timeout,
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	var rt http.RoundTripper = transport
	if c.cookie != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  c.cookie,
			headers: c.headers,
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c.httpClient = &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return c, nil
}

// Timeout returns the per-fetch deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ProxyAddress returns the configured proxy address, empty for direct connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Fetch performs one GET of pageURL and returns its outcome.
// It never returns a nil error inside a failed outcome: Err is always an *Error.
func (c *Client) Fetch(ctx context.Context, pageURL string) model.FetchOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return c.fail(pageURL, model.FailureProtocol, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(pageURL, classify(ctx, err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(pageURL, model.FailureProtocol,
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		kind := classify(ctx, err)
		if kind == model.FailureConnection {
			kind = model.FailureProtocol
		}
		return c.fail(pageURL, kind, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	if !isTextual(contentType) {
		return c.fail(pageURL, model.FailureProtocol,
			fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType))
	}

	outcome := model.Success(pageURL, resp.StatusCode, contentType, decode(raw, contentType))
	if resp.Request != nil && resp.Request.URL != nil {
		if final := resp.Request.URL.String(); final != pageURL {
			outcome.FinalURL = final
		}
	}
	return outcome
}

func (c *Client) fail(pageURL string, kind model.FailureKind, err error) model.FetchOutcome {
	return model.Failure(pageURL, kind, &Error{URL: pageURL, Kind: kind, Err: err})
}

// classify maps a transport error to a failure kind.
func classify(ctx context.Context, err error) model.FailureKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}
	return model.FailureConnection
}

// isTextual reports whether a content type may carry links or addresses.
func isTextual(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/xhtml+xml"
}

// decode converts raw to UTF-8 using the declared or sniffed charset.
// The raw bytes are returned if decoding fails.
func decode(raw []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return raw
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return raw
	}
	return decoded
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

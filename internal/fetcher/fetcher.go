// Package fetcher provides the shared HTTP client used by the enrichment
// components: identifying User-Agent, redirect following, per-host rate
// limiting, bounded body reads, and charset normalization to UTF-8.
package fetcher

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	UserAgent    string
	Timeout      time.Duration // overall cap per request; callers usually pass a tighter ctx deadline
	PerHostRPS   float64
	PerHostBurst int
	MaxBodyBytes int64
	HTTPClient   *http.Client // optional override, used by tests
}

// Client is a rate-limited HTTP fetcher.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64

	perHost rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Response is the outcome of a successful transport round trip. HTTP error
// statuses (4xx/5xx) are reported here, not as Go errors.
type Response struct {
	StatusCode  int
	FinalURL    string
	UsedTLS     bool // scheme of the final URL after redirects
	ContentType string
	Body        []byte // decoded to UTF-8
	Elapsed     time.Duration
}

// New creates a Client. Zero option fields get conservative defaults.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; LeadScoutBot/1.0)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PerHostRPS <= 0 {
		opts.PerHostRPS = 2
	}
	if opts.PerHostBurst <= 0 {
		opts.PerHostBurst = 4
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 512 * 1024
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		http:      httpClient,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		perHost:   rate.Limit(opts.PerHostRPS),
		burst:     opts.PerHostBurst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Get fetches the URL, following redirects, and returns the final status,
// body, and timing. Transport-level failures (DNS, dial, timeout) come back
// as errors; HTTP error statuses do not.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	if err := c.limiter(req.URL.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limit wait")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	body, decErr := decodeToUTF8(raw, contentType)
	if decErr != nil {
		// Unknown charset: fall back to the raw bytes.
		body = raw
	}

	finalURL := rawURL
	usedTLS := strings.HasPrefix(strings.ToLower(rawURL), "https://")
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
		usedTLS = resp.Request.URL.Scheme == "https"
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		FinalURL:    finalURL,
		UsedTLS:     usedTLS,
		ContentType: contentType,
		Body:        body,
		Elapsed:     elapsed,
	}, nil
}

// limiter returns the per-host rate limiter, creating it on first use.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.perHost, c.burst)
		c.limiters[host] = lim
	}
	return lim
}

// decodeToUTF8 converts the body to UTF-8 based on the Content-Type charset
// parameter. Bodies without a declared charset pass through unchanged.
func decodeToUTF8(raw []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return raw, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return raw, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return raw, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unknown charset %s", charset)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: decode body")
	}
	return decoded, nil
}

// IsTimeout reports whether the fetch error was a deadline or network
// timeout, as opposed to some other transport failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// IsHTML reports whether a Content-Type header denotes an HTML document.
func IsHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

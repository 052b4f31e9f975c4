package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/bioleads/internal/metrics"
	"github.com/sells-group/bioleads/internal/resilience"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// ClientOptions configures a Client for one upstream API.
// HTTPClient replaces the default pooled client when set.
type ClientOptions struct {
	Service    string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	Burst      int
	Retry      resilience.Policy
	Breaker    *resilience.Breaker
	HTTPClient *http.Client
}

// Client issues rate-limited JSON requests against one API, retrying
// transient failures and tripping a breaker when the API keeps failing.
type Client struct {
	service   string
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *AdaptiveLimiter
	retry     resilience.Policy
	breaker   *resilience.Breaker
}

// NewClient creates a Client. Zero options fall back to a 30s timeout, one
// request per second and a default breaker.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "bioleads/1.0"
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewBreaker(0, 0)
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetries(opts.Service)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		service:   opts.Service,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		http:      hc,
		limiter:   NewAdaptiveLimiter(opts.Service, rate.Limit(opts.RateLimit), opts.Burst),
		retry:     opts.Retry,
		breaker:   opts.Breaker,
	}
}

// Limiter exposes the client's adaptive limiter.
func (c *Client) Limiter() *AdaptiveLimiter { return c.limiter }

// GetJSON sends GET baseURL+path?params and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, c.endpoint(path, params), nil, "application/json", decodeJSON(out))
}

// GetXML sends GET baseURL+path?params and decodes the XML body into out.
// Non-UTF-8 charsets declared in the document are transcoded.
func (c *Client) GetXML(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, c.endpoint(path, params), nil, "application/xml", decodeXML(out))
}

// PostJSON sends body as JSON to baseURL+path and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "%s: encode request", c.service)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, data, "application/json", decodeJSON(out))
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

type decodeFunc func(r io.Reader) error

func decodeJSON(out any) decodeFunc {
	return func(r io.Reader) error {
		if out == nil {
			return nil
		}
		return json.NewDecoder(r).Decode(out)
	}
}

func decodeXML(out any) decodeFunc {
	return func(r io.Reader) error {
		if out == nil {
			return nil
		}
		dec := xml.NewDecoder(r)
		dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, eris.Wrapf(err, "unsupported charset %q", charset)
			}
			return enc.NewDecoder().Reader(input), nil
		}
		return dec.Decode(out)
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, accept string, decode decodeFunc) error {
	if err := c.breaker.Allow(); err != nil {
		return eris.Wrapf(err, "%s: %s %s", c.service, method, rawURL)
	}

	err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.attempt(ctx, method, rawURL, body, accept, decode)
	})
	c.breaker.Record(err)
	if err != nil {
		return eris.Wrapf(err, "%s: %s %s", c.service, method, rawURL)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, body []byte, accept string, decode decodeFunc) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter wait")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveSourceRequest(c.service, "error", time.Since(start))
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck
	metrics.ObserveSourceRequest(c.service, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.OnRateLimit()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &resilience.StatusError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	c.limiter.OnSuccess()

	if err := decode(resp.Body); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

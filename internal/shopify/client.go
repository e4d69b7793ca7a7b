package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/logger"
)

const tokenHeader = "X-Shopify-Access-Token"

// Config configures a Gateway.
type Config struct {
	APIVersion string
	BaseURL    string // when set, replaces https://{shop}/admin/api/{version}
	Timeout    time.Duration
	UserAgent  string

	Retry    RetryPolicy
	MaxPages int           // per listing; 0 means unbounded
	Guard    ResourceGuard // optional
	Clock    Clock         // retry sleeps; nil uses SystemClock
}

// Gateway holds what every shop session shares: the HTTP client and the
// process-wide throttle.
type Gateway struct {
	http     *resty.Client
	throttle *Throttle
	cfg      Config
}

// NewGateway builds a Gateway. Every call made through its sessions waits on throttle.
func NewGateway(cfg Config, throttle *Throttle) *Gateway {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-10"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if throttle == nil {
		throttle = NewThrottle(0, nil)
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.SetJSONMarshaler(sonic.Marshal)
	client.SetJSONUnmarshaler(sonic.Unmarshal)

	return &Gateway{http: client, throttle: throttle, cfg: cfg}
}

// Session returns a Client bound to one shop and token.
func (g *Gateway) Session(cred domain.Credential) *Client {
	base := strings.TrimRight(g.cfg.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s/admin/api/%s", cred.Shop, g.cfg.APIVersion)
	}
	return &Client{gw: g, cred: cred, base: base}
}

// Client issues calls for a single shop.
type Client struct {
	gw   *Gateway
	cred domain.Credential
	base string
}

// Response is a successful or failed upstream reply.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// Shop returns the shop domain the client is bound to.
func (c *Client) Shop() string {
	return c.cred.Shop
}

// Pager returns a Pager using the gateway's retry and page limits.
func (c *Client) Pager() *Pager {
	return &Pager{
		Policy:   c.gw.cfg.Retry,
		MaxPages: c.gw.cfg.MaxPages,
		Guard:    c.gw.cfg.Guard,
		Clock:    c.gw.cfg.Clock,
	}
}

// Do performs one throttled call. path is relative to the Admin API base
// unless it is already absolute (Link header URLs). A non-nil out receives
// the decoded 2xx body.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) (*Response, error) {
	target := c.resolve(path)
	if err := c.gw.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle: %w", err)
	}

	req := c.gw.http.R().
		SetContext(ctx).
		SetHeader(tokenHeader, c.cred.AccessToken)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	httpResp, err := req.Execute(method, target)
	if err != nil {
		logger.With(logger.Fields{
			logger.FieldURL:        target,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Warn(ctx, "Shopify %s failed: %v", method, err)
		return nil, &UpstreamError{URL: target, Err: err}
	}

	resp := &Response{
		URL:    target,
		Status: httpResp.StatusCode(),
		Header: httpResp.Header(),
		Body:   httpResp.Body(),
	}
	if resp.Status < 200 || resp.Status >= 300 {
		logger.With(logger.Fields{
			logger.FieldURL:        target,
			logger.FieldStatus:     resp.Status,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Warn(ctx, "Shopify %s returned %d", method, resp.Status)
		return resp, &UpstreamError{URL: target, Status: resp.Status, Message: snippet(resp.Body)}
	}

	if out != nil && len(resp.Body) > 0 {
		if err := sonic.Unmarshal(resp.Body, out); err != nil {
			return resp, &UpstreamError{URL: target, Status: resp.Status, Message: "decode response", Err: err}
		}
	}
	return resp, nil
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, out interface{}) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Put is Do with PUT.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Post is Do with POST.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// ShopInfo returns the shop.json document. It doubles as a token check.
func (c *Client) ShopInfo(ctx context.Context) (map[string]interface{}, error) {
	var resp struct {
		Shop map[string]interface{} `json:"shop"`
	}
	if _, err := c.Get(ctx, "shop.json", &resp); err != nil {
		return nil, err
	}
	return resp.Shop, nil
}

// ActiveTheme returns the theme with role "main", falling back to one with
// role "published". It returns nil when neither exists.
func (c *Client) ActiveTheme(ctx context.Context) (*Theme, error) {
	var resp struct {
		Themes []Theme `json:"themes"`
	}
	if _, err := c.Get(ctx, "themes.json", &resp); err != nil {
		return nil, err
	}
	var published *Theme
	for i := range resp.Themes {
		switch resp.Themes[i].Role {
		case "main":
			return &resp.Themes[i], nil
		case "published":
			if published == nil {
				published = &resp.Themes[i]
			}
		}
	}
	return published, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return path
	}
	return c.base + "/" + strings.TrimPrefix(path, "/")
}

// snippet trims an error body for logs and messages.
func snippet(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

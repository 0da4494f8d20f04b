package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/tiku/internal/catalog"
	"github.com/pbaille/tiku/internal/domain"
)

const (
	DefaultCatalogURL   = "https://tiku.fenbi.com/api/xingce/errors/keypoint-tree"
	DefaultSolutionsURL = "https://tiku.fenbi.com/api/xingce/solutions"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.106 Safari/537.36"

	maxBodyBytes = 20 * 1024 * 1024
)

// Config configures a Client
type Config struct {
	CatalogURL   string
	SolutionsURL string
	UserAgent    string
	Cookies      string // raw Cookie header value
	Timeout      time.Duration
}

func (c *Config) defaults() {
	if c.CatalogURL == "" {
		c.CatalogURL = DefaultCatalogURL
	}
	if c.SolutionsURL == "" {
		c.SolutionsURL = DefaultSolutionsURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client is an authenticated session against the question bank
type Client struct {
	http    *http.Client
	cookies []*http.Cookie
	config  Config
}

// New builds a Client. It fails with domain.ErrConfiguration when the
// session cookies are missing, before any request is made.
func New(cfg Config) (*Client, error) {
	cfg.defaults()

	cookies, err := ParseCookies(cfg.Cookies)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cookies: cookies,
		config:  cfg,
	}, nil
}

// ParseCookies parses a raw Cookie header such as "a=1; b=2". Empty
// parts and parts without "=" are skipped, as browsers paste them.
func ParseCookies(raw string) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("no usable session cookies (want name=value pairs): %w", domain.ErrConfiguration)
	}
	return cookies, nil
}

// Catalog retrieves the current keypoint tree. The raw body is returned
// alongside the parsed tree so callers can persist it verbatim.
func (c *Client) Catalog(ctx context.Context) ([]byte, domain.Catalog, error) {
	body, err := c.get(ctx, c.config.CatalogURL, nil)
	if err != nil {
		return nil, nil, err
	}

	tree, err := catalog.Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return body, tree, nil
}

// Solutions retrieves full details for ids in a single request. The
// service chooses the order of the returned records.
func (c *Client) Solutions(ctx context.Context, ids []int64) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{"ids": {strings.Join(parts, ",")}}

	body, err := c.get(ctx, c.config.SolutionsURL, params)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: decode solutions: %v", domain.ErrMalformedResponse, err)
	}

	questions := make([]domain.Question, 0, len(raws))
	for i, raw := range raws {
		q, err := domain.DecodeQuestion(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: solution %d: %v", domain.ErrMalformedResponse, i, err)
		}
		if q.ID == 0 {
			return nil, fmt.Errorf("%w: solution %d has no id", domain.ErrMalformedResponse, i)
		}
		questions = append(questions, *q)
	}

	return questions, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v: %w", err, domain.ErrConfiguration)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrTransport, u.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: HTTP %d: %s", domain.ErrTransport, u.Path, resp.StatusCode, snippet(body))
	}

	return body, nil
}

func snippet(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}

package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBody caps downloads to prevent runaway responses.
const maxBody = 10 << 20

// ErrInsufficient is returned by a strict HTTP provider when the page has
// no timetable panels without scripts.
var ErrInsufficient = errors.New("render: page has no panels without javascript")

// HTTP fetches the page with a plain GET. It works when the panels are
// rendered server-side and is much cheaper than a browser.
type HTTP struct {
	url    string
	client *http.Client
	ua     string
	strict bool
	logger *slog.Logger
}

// HTTPOption configures an HTTP provider.
type HTTPOption func(*HTTP)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithUserAgent sets the User-Agent header. Empty keeps DefaultUserAgent.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		if ua != "" {
			h.ua = ua
		}
	}
}

// WithLogger sets a custom logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithStrict makes Render fail with ErrInsufficient when the page is not
// Sufficient, so a Fallback can hand over to the browser.
func WithStrict(strict bool) HTTPOption {
	return func(h *HTTP) { h.strict = strict }
}

// NewHTTP creates an HTTP provider for url (DefaultURL when empty).
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	if url == "" {
		url = DefaultURL
	}
	h := &HTTP{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     DefaultUserAgent,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Render GETs the page and returns its body.
func (h *HTTP) Render(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return "", fmt.Errorf("http: new request: %w", err)
	}
	req.Header.Set("User-Agent", h.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", fmt.Errorf("http: %s: status %d", h.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("http: read body: %w", err)
	}

	page := string(body)
	sufficient := Sufficient(page)
	h.logger.Debug("http: fetched",
		"url", h.url, "status", resp.StatusCode,
		"size", len(body), "sufficient", sufficient)
	if !sufficient {
		if h.strict {
			return "", ErrInsufficient
		}
		h.logger.Warn("http: page has no timetable panels, it may need a browser", "url", h.url)
	}
	return page, nil
}

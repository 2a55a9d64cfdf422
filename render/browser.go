package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures the Chrome-backed provider.
type BrowserConfig struct {
	URL       string
	UserAgent string

	// NavTimeout bounds navigation and page load. Default: 60s.
	NavTimeout time.Duration

	// SettleDelay is the time given to the page builder to inject the
	// panels, measured from the end of page load. Default: 20s.
	SettleDelay time.Duration

	// Blocked lists resource types to block. Nil means DefaultBlocked.
	Blocked []string

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 20 * time.Second
	}
	if c.Blocked == nil {
		c.Blocked = DefaultBlocked
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser renders the page in headless Chrome with stealth evasions.
type Browser struct {
	mgr *Manager
	cfg BrowserConfig
}

// NewBrowser creates a Browser provider on top of mgr.
func NewBrowser(mgr *Manager, cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{mgr: mgr, cfg: cfg}
}

// Render opens a fresh stealth tab, loads the page, waits for the panels
// and returns the serialised DOM.
func (b *Browser) Render(ctx context.Context) (string, error) {
	log := b.cfg.Logger

	br, err := b.mgr.Browser(ctx)
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(br)
	if err != nil {
		// A dead browser fails here first; start over next time.
		b.mgr.Discard()
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if len(b.cfg.Blocked) > 0 {
		router := blockResources(page, b.cfg.Blocked)
		defer router.Stop()
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
		log.Warn("browser: set user agent failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()

	start := time.Now()
	if err := page.Context(navCtx).Navigate(b.cfg.URL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", b.cfg.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", b.cfg.URL, "error", err)
	}
	loaded := time.Now()

	// The panels are injected by script after load. Wait for the first one,
	// then let the rest of the settle delay run out so late panels land.
	waitCtx, cancelWait := context.WithTimeout(ctx, b.cfg.SettleDelay)
	_, werr := page.Context(waitCtx).Element(PanelSelector)
	cancelWait()
	if werr != nil {
		log.Warn("browser: panels not found before settle delay", "selector", PanelSelector, "error", werr)
	}
	if remaining := b.cfg.SettleDelay - time.Since(loaded); remaining > 0 {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("browser: settle: %w", ctx.Err())
		case <-time.After(remaining):
		}
	}

	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}

	log.Debug("browser: rendered", "url", b.cfg.URL, "size", len(html), "duration", time.Since(start))
	return html, nil
}

// Package render produces the fully rendered HTML of the timetable page.
//
// The extraction core treats rendered HTML as an opaque string; this package
// is where it comes from. Browser drives headless Chrome through Rod, HTTP
// does a plain GET, File reads a saved page. Guard and Fallback compose
// providers with retries, a circuit breaker and a secondary source.
package render

import (
	"context"
	"errors"
)

// DefaultURL is the public timetable page.
const DefaultURL = "https://mykonosbus.com/bus-timetables/"

// DefaultUserAgent is sent by the browser and HTTP providers.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// PanelSelector matches the accordion panels that carry the timetables.
const PanelSelector = "div.vc_tta-panel"

// ErrUpstreamUnavailable marks a failure to obtain the rendered page. Every
// error returned by Guard wraps it.
var ErrUpstreamUnavailable = errors.New("render: upstream unavailable")

// ErrCircuitOpen is returned by Guard while its breaker rejects calls.
type ErrCircuitOpen struct {
	Provider string
}

func (e *ErrCircuitOpen) Error() string {
	return "render: circuit open: " + e.Provider
}

func (e *ErrCircuitOpen) Unwrap() error { return ErrUpstreamUnavailable }

// Provider renders the timetable page.
type Provider interface {
	Render(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

func (f ProviderFunc) Render(ctx context.Context) (string, error) { return f(ctx) }

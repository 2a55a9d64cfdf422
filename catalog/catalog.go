// Package catalog is the static registry of bus routes tracked by the
// timetable service. Each route maps a canonical name to the stable panel
// identifier used on the source page and to the image asset shown above its
// timetable.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultImageBase is the public location of the route header images.
const DefaultImageBase = "https://mykonosbusmap.com/images/"

// PlaceholderImage is served for routes without a dedicated asset.
const PlaceholderImage = "placeholder_01.svg"

// ErrDuplicate is returned when two routes share a canonical name or an
// external identifier.
var ErrDuplicate = errors.New("catalog: duplicate route")

// ErrInvalid is returned when a route is missing a required field.
var ErrInvalid = errors.New("catalog: invalid route")

// Route is one origin-destination bus line.
type Route struct {
	CanonicalName string `yaml:"name" json:"name" validate:"required"`
	ExternalID    string `yaml:"external_id" json:"externalId" validate:"required"`
	ImageAsset    string `yaml:"image" json:"imageAsset"`
}

// Stops splits the canonical name into its stop names, in travel order.
// "old port (mykonos town) - agios stefanos - new port" yields three stops.
func (r Route) Stops() []string {
	parts := strings.Split(r.CanonicalName, " - ")
	stops := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			stops = append(stops, p)
		}
	}
	return stops
}

// Catalog is an immutable, ordered set of routes.
type Catalog struct {
	routes    []Route
	byID      map[string]int
	byName    map[string]int
	imageBase string
}

// New builds a catalog from routes, preserving their order. It rejects empty
// names or identifiers and enforces uniqueness of both.
func New(imageBase string, routes ...Route) (*Catalog, error) {
	if imageBase == "" {
		imageBase = DefaultImageBase
	}
	if !strings.HasSuffix(imageBase, "/") {
		imageBase += "/"
	}

	c := &Catalog{
		routes:    make([]Route, 0, len(routes)),
		byID:      make(map[string]int, len(routes)),
		byName:    make(map[string]int, len(routes)),
		imageBase: imageBase,
	}
	for _, r := range routes {
		r.CanonicalName = strings.TrimSpace(r.CanonicalName)
		r.ExternalID = strings.TrimSpace(r.ExternalID)
		if r.CanonicalName == "" || r.ExternalID == "" {
			return nil, fmt.Errorf("%w: name=%q id=%q", ErrInvalid, r.CanonicalName, r.ExternalID)
		}
		if _, ok := c.byName[r.CanonicalName]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicate, r.CanonicalName)
		}
		if _, ok := c.byID[r.ExternalID]; ok {
			return nil, fmt.Errorf("%w: external id %q", ErrDuplicate, r.ExternalID)
		}
		c.byName[r.CanonicalName] = len(c.routes)
		c.byID[r.ExternalID] = len(c.routes)
		c.routes = append(c.routes, r)
	}
	return c, nil
}

// Routes returns a copy of the routes in catalog order.
func (c *Catalog) Routes() []Route {
	out := make([]Route, len(c.routes))
	copy(out, c.routes)
	return out
}

// Len returns the number of routes.
func (c *Catalog) Len() int { return len(c.routes) }

// ByExternalID looks a route up by its panel identifier.
func (c *Catalog) ByExternalID(id string) (Route, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Route{}, false
	}
	return c.routes[i], true
}

// ByName looks a route up by canonical name. The comparison is
// case-insensitive and ignores surrounding whitespace.
func (c *Catalog) ByName(name string) (Route, bool) {
	if i, ok := c.byName[name]; ok {
		return c.routes[i], true
	}
	norm := strings.ToLower(strings.TrimSpace(name))
	for _, r := range c.routes {
		if strings.ToLower(r.CanonicalName) == norm {
			return r, true
		}
	}
	return Route{}, false
}

// HeaderImage returns the absolute URL of the route's header image.
func (c *Catalog) HeaderImage(r Route) string {
	asset := r.ImageAsset
	if asset == "" {
		asset = PlaceholderImage
	}
	return c.imageBase + asset
}

// ImageBase returns the base URL images are resolved against.
func (c *Catalog) ImageBase() string { return c.imageBase }

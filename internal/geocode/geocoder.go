// Package geocode resolves place names to coordinates using an
// external gazetteer with Nominatim-compatible query parameters.
// Failures are swallowed: a place that cannot be resolved simply has
// no coordinates and search falls back to name matching.
package geocode

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org/search"

	// metroRadiusKm is used for places matching a major-city alias,
	// districtRadiusKm for everything else.
	metroRadiusKm    = 20.0
	districtRadiusKm = 5.0

	resolveTimeout = 3 * time.Second
)

//go:embed cities.yaml
var citiesYAML []byte

// Location is a resolved place with a search radius.
type Location struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

// Geocoder resolves place names and caches results by exact input.
type Geocoder struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	majorCities map[string]bool

	mu    sync.Mutex
	cache map[string]*Location
}

type cityList struct {
	Cities []struct {
		Aliases []string `yaml:"aliases"`
	} `yaml:"cities"`
}

// New creates a geocoder. An empty baseURL selects the public
// Nominatim endpoint.
func New(baseURL string, logger *zap.Logger) (*Geocoder, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var cities cityList
	if err := yaml.Unmarshal(citiesYAML, &cities); err != nil {
		return nil, fmt.Errorf("parsing embedded city list: %w", err)
	}
	major := make(map[string]bool)
	for _, c := range cities.Cities {
		for _, alias := range c.Aliases {
			major[strings.ToLower(alias)] = true
		}
	}

	return &Geocoder{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: resolveTimeout},
		logger:      logger,
		majorCities: major,
		cache:       make(map[string]*Location),
	}, nil
}

// IsMajorCity reports whether name matches a major-city alias,
// case-insensitively.
func (g *Geocoder) IsMajorCity(name string) bool {
	return g.majorCities[strings.ToLower(strings.TrimSpace(name))]
}

type gazetteerEntry struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve maps a place name to coordinates with a search radius.
// Returns nil on any failure: timeout, bad status, empty result set,
// unparsable payload. Only successful lookups are cached, so a
// transient gazetteer failure does not pin the name to nil for the
// process lifetime.
func (g *Geocoder) Resolve(ctx context.Context, name string) *Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	g.mu.Lock()
	if loc, ok := g.cache[name]; ok {
		g.mu.Unlock()
		return loc
	}
	g.mu.Unlock()

	loc := g.lookup(ctx, name)
	if loc == nil {
		return nil
	}

	g.mu.Lock()
	g.cache[name] = loc
	g.mu.Unlock()
	return loc
}

func (g *Geocoder) lookup(ctx context.Context, name string) *Location {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", name)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "picta/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("geocoder request failed", zap.String("place", name), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("geocoder returned non-OK status",
			zap.String("place", name), zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var entries []gazetteerEntry
	if err := json.Unmarshal(body, &entries); err != nil || len(entries) == 0 {
		return nil
	}

	lat, err := strconv.ParseFloat(entries[0].Lat, 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(entries[0].Lon, 64)
	if err != nil {
		return nil
	}

	radius := districtRadiusKm
	if g.majorCities[strings.ToLower(name)] {
		radius = metroRadiusKm
	}
	return &Location{Lat: lat, Lon: lon, RadiusKm: radius}
}

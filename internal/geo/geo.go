// Package geo resolves source addresses to coarse locations via
// ip-api.com. Lookups are advisory: every failure degrades to ok=false,
// never to an error, so enrichment can never block ingestion.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Location struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type Enricher interface {
	Lookup(ctx context.Context, addr string) (Location, bool)
}

const (
	defaultBaseURL = "http://ip-api.com/json"
	lookupTimeout  = 5 * time.Second
	cacheTTL       = time.Hour
	cacheMaxSize   = 4096
)

type cacheEntry struct {
	loc      Location
	ok       bool
	cachedAt time.Time
}

// IPAPIEnricher looks up addresses against an ip-api.com compatible
// endpoint with a hard timeout and a small TTL cache.
type IPAPIEnricher struct {
	BaseURL string
	Client  *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewIPAPIEnricher(baseURL string) *IPAPIEnricher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &IPAPIEnricher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: lookupTimeout},
		cache:   make(map[string]cacheEntry),
	}
}

type ipapiResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

func (e *IPAPIEnricher) Lookup(ctx context.Context, addr string) (Location, bool) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return Location{}, false
	}

	if loc, ok, hit := e.cached(addr); hit {
		return loc, ok
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s?fields=status,country,countryCode,city,lat,lon", e.BaseURL, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, false
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		log.WithError(err).WithField("addr", addr).Debug("geo lookup failed")
		return Location{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, false
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, false
	}
	if body.Status != "success" {
		// Failed lookups are cached too, to spare the rate limit.
		e.store(addr, Location{}, false)
		return Location{}, false
	}

	loc := Location{
		City:        body.City,
		Country:     body.Country,
		CountryCode: body.CountryCode,
		Latitude:    body.Lat,
		Longitude:   body.Lon,
	}
	e.store(addr, loc, true)
	return loc, true
}

func (e *IPAPIEnricher) cached(addr string) (Location, bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[addr]
	if !ok || time.Since(entry.cachedAt) > cacheTTL {
		return Location{}, false, false
	}
	return entry.loc, entry.ok, true
}

func (e *IPAPIEnricher) store(addr string, loc Location, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cache) >= cacheMaxSize {
		for k, v := range e.cache {
			if time.Since(v.cachedAt) > cacheTTL {
				delete(e.cache, k)
			}
		}
		// Still full after pruning expired entries: drop the map rather
		// than grow without bound.
		if len(e.cache) >= cacheMaxSize {
			e.cache = make(map[string]cacheEntry)
		}
	}
	e.cache[addr] = cacheEntry{loc: loc, ok: ok, cachedAt: time.Now()}
}

var _ Enricher = (*IPAPIEnricher)(nil)

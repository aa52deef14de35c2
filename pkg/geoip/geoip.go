// Package geoip classifies a request's billing currency from its source IP
// and Accept-Language header. Detection is best effort: any lookup failure,
// including timeout, silently falls back to USD so a slow geolocation
// provider can never stall checkout.
package geoip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"
)

type Detector struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
}

// New builds a detector against an ip-api style endpoint. timeout bounds the
// lookup (the provider gets no say in how long checkout waits); results are
// cached per IP for cacheTTL.
func New(baseURL string, timeout, cacheTTL time.Duration) *Detector {
	if baseURL == "" {
		baseURL = "http://ip-api.com"
	}
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Detector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   cache.New(cacheTTL, 2*cacheTTL),
	}
}

// Currency returns INR for Indian traffic (geolocated IP, or a Hindi
// Accept-Language), USD for everything else including every failure path.
func (d *Detector) Currency(ctx context.Context, ip, acceptLanguage string) string {
	if indicatesHindi(acceptLanguage) {
		return CurrencyINR
	}
	if ip == "" || isPrivate(ip) {
		return CurrencyUSD
	}
	if v, ok := d.cache.Get(ip); ok {
		return v.(string)
	}
	currency := d.lookup(ctx, ip)
	d.cache.Set(ip, currency, cache.DefaultExpiration)
	return currency
}

type geoResponse struct {
	Status      string `json:"status"`
	CountryCode string `json:"countryCode"`
}

func (d *Detector) lookup(ctx context.Context, ip string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/json/"+ip+"?fields=status,countryCode", nil)
	if err != nil {
		return CurrencyUSD
	}
	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("geoip lookup failed, defaulting to USD")
		return CurrencyUSD
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CurrencyUSD
	}
	var out geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CurrencyUSD
	}
	if out.Status == "success" && out.CountryCode == "IN" {
		return CurrencyINR
	}
	return CurrencyUSD
}

func indicatesHindi(acceptLanguage string) bool {
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang == "hi" || strings.HasPrefix(lang, "hi-") {
			return true
		}
	}
	return false
}

// isPrivate reports whether ip is non-routable (loopback, RFC 1918/4193,
// link-local) or unparseable; such addresses never reach the provider.
func isPrivate(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return true
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func geoServer(t *testing.T, hits *atomic.Int64, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrency_IndianIP(t *testing.T) {
	srv := geoServer(t, nil, `{"status":"success","countryCode":"IN"}`, http.StatusOK)
	d := New(srv.URL, time.Second, time.Minute)

	assert.Equal(t, CurrencyINR, d.Currency(context.Background(), "49.37.12.34", ""))
}

func TestCurrency_NonIndianIP(t *testing.T) {
	srv := geoServer(t, nil, `{"status":"success","countryCode":"US"}`, http.StatusOK)
	d := New(srv.URL, time.Second, time.Minute)

	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "8.8.8.8", ""))
}

func TestCurrency_HindiHeaderShortCircuits(t *testing.T) {
	var hits atomic.Int64
	srv := geoServer(t, &hits, `{"status":"success","countryCode":"US"}`, http.StatusOK)
	d := New(srv.URL, time.Second, time.Minute)

	assert.Equal(t, CurrencyINR, d.Currency(context.Background(), "8.8.8.8", "hi-IN,hi;q=0.9,en;q=0.8"))
	assert.Equal(t, CurrencyINR, d.Currency(context.Background(), "", "hi"))
	assert.Equal(t, int64(0), hits.Load())
	// "hi" must match as a language tag, not a substring: "hil" falls
	// through to the geo lookup.
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "8.8.8.8", "hil,en"))
	assert.Equal(t, int64(1), hits.Load())
}

func TestCurrency_PrivateAndEmptyIPs(t *testing.T) {
	var hits atomic.Int64
	srv := geoServer(t, &hits, `{"status":"success","countryCode":"IN"}`, http.StatusOK)
	d := New(srv.URL, time.Second, time.Minute)

	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "", ""))
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "127.0.0.1", ""))
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "192.168.1.10", ""))
	// 172.16/12 spans through 172.31, and link-local and ULA ranges count too.
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "172.20.0.9", ""))
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "169.254.1.1", ""))
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "::1", ""))
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "fd00::1", ""))
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "not-an-ip", ""))
	assert.Equal(t, int64(0), hits.Load())
}

func TestCurrency_LookupFailuresDefaultToUSD(t *testing.T) {
	srv := geoServer(t, nil, `oops`, http.StatusInternalServerError)
	d := New(srv.URL, time.Second, time.Minute)
	assert.Equal(t, CurrencyUSD, d.Currency(context.Background(), "49.37.12.34", ""))

	// Unreachable endpoint.
	dead := New("http://127.0.0.1:1", 200*time.Millisecond, time.Minute)
	assert.Equal(t, CurrencyUSD, dead.Currency(context.Background(), "49.37.12.34", ""))
}

func TestCurrency_ResultIsCachedPerIP(t *testing.T) {
	var hits atomic.Int64
	srv := geoServer(t, &hits, `{"status":"success","countryCode":"IN"}`, http.StatusOK)
	d := New(srv.URL, time.Second, time.Minute)

	assert.Equal(t, CurrencyINR, d.Currency(context.Background(), "49.37.12.34", ""))
	assert.Equal(t, CurrencyINR, d.Currency(context.Background(), "49.37.12.34", ""))
	assert.Equal(t, int64(1), hits.Load())
}

package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/application/service/ingestion"
	domain "main/internal/domain/entity/instruments"
)

func testEntry(url string, fields map[string]string) CatalogEntry {
	return CatalogEntry{
		Domain: domain.DomainForex,
		Code:   "usdghs",
		Name:   "US Dollar to Ghana Cedi",
		Source: "erapi:usdghs",
		URL:    url,
		Fields: fields,
	}
}

func TestHTTPSourceFetchesNestedField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"result":"success","rates":{"GHS":14.21,"NGN":1520.5}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rates.GHS"}), server.Client())

	snapshot, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "erapi:usdghs", source.Name())
	assert.Equal(t, domain.DomainForex, snapshot.Domain)
	assert.Equal(t, "usdghs", snapshot.Code)
	assert.Equal(t, 14.21, snapshot.Prices[domain.FieldPrice])
}

func TestHTTPSourceParsesDecoratedNumericString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"rate":"GHS 1,234.56"}`))
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rate"}), server.Client())

	snapshot, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234.56, snapshot.Prices[domain.FieldPrice])
}

func TestHTTPSourceFetchesTriplet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"rates":{"buying":13.9,"selling":14.1,"midrate":14.0}}`))
	}))
	defer server.Close()

	entry := CatalogEntry{
		Domain: domain.DomainInterbank,
		Code:   "gcb-usdghs",
		URL:    server.URL,
		Fields: map[string]string{
			domain.FieldBuying:  "rates.buying",
			domain.FieldSelling: "rates.selling",
			domain.FieldMidrate: "rates.midrate",
		},
	}
	source := NewHTTPSource(entry, server.Client())

	snapshot, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 13.9, snapshot.Prices[domain.FieldBuying])
	assert.Equal(t, 14.1, snapshot.Prices[domain.FieldSelling])
	assert.Equal(t, 14.0, snapshot.Prices[domain.FieldMidrate])
}

func TestHTTPSourceSurfacesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rate"}), server.Client())

	_, err := source.Fetch(context.Background())
	var rateLimited *ingestion.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, 30*time.Second, rateLimited.RetryAfter)
}

func TestHTTPSourceRateLimitWithoutHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rate"}), server.Client())

	_, err := source.Fetch(context.Background())
	var rateLimited *ingestion.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
	assert.Zero(t, rateLimited.RetryAfter)
}

func TestHTTPSourceRejectsUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rate"}), server.Client())

	_, err := source.Fetch(context.Background())
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestHTTPSourceRejectsMissingPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"rates":{"USD":1.0}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rates.GHS"}), server.Client())

	_, err := source.Fetch(context.Background())
	assert.ErrorContains(t, err, `key "GHS" not found`)
}

func TestHTTPSourceRejectsNonNumericLeaf(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"rate":{"nested":true}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rate"}), server.Client())

	_, err := source.Fetch(context.Background())
	assert.ErrorContains(t, err, "not a number")
}

func TestHTTPSourceHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	source := NewHTTPSource(testEntry(server.URL, map[string]string{domain.FieldPrice: "rate"}), server.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := source.Fetch(ctx)
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}

func TestExtractNumber(t *testing.T) {
	document := map[string]any{
		"data": map[string]any{
			"rates": map[string]any{"BRENT": 78.35},
		},
		"close": "6,011.22",
	}

	value, err := extractNumber(document, "data.rates.BRENT")
	require.NoError(t, err)
	assert.Equal(t, 78.35, value)

	value, err = extractNumber(document, "close")
	require.NoError(t, err)
	assert.Equal(t, 6011.22, value)

	_, err = extractNumber(document, "data.rates.WTI")
	assert.Error(t, err)

	_, err = extractNumber(document, "close.deeper")
	assert.Error(t, err)
}

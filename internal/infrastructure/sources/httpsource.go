package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"main/internal/application/service/ingestion"
	domain "main/internal/domain/entity/instruments"
	"main/internal/domain/interfaces"
)

const userAgent = "MarketsAPI/1.0 (+https://yourdomain.com/contact)"

// HTTPSource fetches one instrument snapshot from a JSON endpoint. Each price
// field maps to a dotted path inside the response document; values may be
// JSON numbers or numeric strings with currency decoration.
type HTTPSource struct {
	name       string
	domain     domain.Domain
	code       string
	instrument string
	attributes map[string]string
	url        string
	fields     map[string]string
	client     *http.Client
}

var _ interfaces.Source = (*HTTPSource)(nil)

func NewHTTPSource(entry CatalogEntry, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	name := entry.Source
	if name == "" {
		name = fmt.Sprintf("%s/%s", entry.Domain, entry.Code)
	}
	return &HTTPSource{
		name:       name,
		domain:     entry.Domain,
		code:       entry.Code,
		instrument: entry.Name,
		attributes: entry.Attributes,
		url:        entry.URL,
		fields:     entry.Fields,
		client:     client,
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) Fetch(ctx context.Context) (domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("build request for %s: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Snapshot{}, &ingestion.RateLimitError{
			Err:        fmt.Errorf("%s responded 429", s.name),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Snapshot{}, fmt.Errorf("fetch %s: unexpected status %d", s.name, resp.StatusCode)
	}

	var document map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&document); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode %s response: %w", s.name, err)
	}

	prices := make(map[string]float64, len(s.fields))
	for field, path := range s.fields {
		value, err := extractNumber(document, path)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%s field %q: %w", s.name, field, err)
		}
		prices[field] = value
	}

	return domain.Snapshot{
		Domain:     s.domain,
		Code:       s.code,
		Name:       s.instrument,
		Attributes: s.attributes,
		Prices:     prices,
	}, nil
}

// parseRetryAfter understands the delay-seconds form of the Retry-After
// header; anything else yields no hint.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// extractNumber walks a dotted path through nested JSON objects and coerces
// the leaf to a float. Numeric strings are cleaned of currency decoration
// ("GHS 1,234.56" parses as 1234.56).
func extractNumber(document map[string]any, path string) (float64, error) {
	var current any = document
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("path %q: %q is not an object", path, key)
		}
		current, ok = node[key]
		if !ok {
			return 0, fmt.Errorf("path %q: key %q not found", path, key)
		}
	}

	switch value := current.(type) {
	case float64:
		return value, nil
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, value)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("path %q: cannot parse %q as number", path, value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("path %q: value is not a number", path)
	}
}

package sources

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"main/internal/application/service/ingestion"
	domain "main/internal/domain/entity/instruments"
)

// CatalogEntry declares one source: which instrument it feeds, where to fetch
// it and how to read the price fields out of the response. Gate optionally
// names a trading-calendar rule narrower than the domain's own gate.
type CatalogEntry struct {
	Domain     domain.Domain     `json:"domain"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Source     string            `json:"source"`
	URL        string            `json:"url"`
	Fields     map[string]string `json:"fields"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Gate       string            `json:"gate,omitempty"`
	GateHours  []int             `json:"gate_hours,omitempty"`
}

// Named per-source gates a catalog entry may reference. weekday_hours also
// reads gate_hours: the UTC clock hours during which the source is open on
// weekdays.
const (
	GateWeekend      = "weekend"
	GateNYSEHours    = "nyse_hours"
	GateWeekdayHours = "weekday_hours"
)

func (e CatalogEntry) validate() error {
	if !e.Domain.IsValid() {
		return fmt.Errorf("entry %s: invalid domain %q", e.Code, e.Domain)
	}
	if e.Code == "" {
		return fmt.Errorf("entry with url %s: code is required", e.URL)
	}
	if e.URL == "" {
		return fmt.Errorf("entry %s: url is required", e.Code)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entry %s: at least one price field is required", e.Code)
	}
	switch e.Gate {
	case "", GateWeekend, GateNYSEHours:
		if len(e.GateHours) > 0 {
			return fmt.Errorf("entry %s: gate_hours requires gate %q", e.Code, GateWeekdayHours)
		}
	case GateWeekdayHours:
		if len(e.GateHours) == 0 {
			return fmt.Errorf("entry %s: gate %q requires gate_hours", e.Code, GateWeekdayHours)
		}
		for _, hour := range e.GateHours {
			if hour < 0 || hour > 23 {
				return fmt.Errorf("entry %s: gate hour %d out of range", e.Code, hour)
			}
		}
	default:
		return fmt.Errorf("entry %s: unknown gate %q", e.Code, e.Gate)
	}
	return nil
}

// LoadCatalog reads the source catalog file.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read source catalog: %w", err)
	}
	var payload struct {
		Sources []CatalogEntry `json:"sources"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse source catalog: %w", err)
	}
	for _, entry := range payload.Sources {
		if err := entry.validate(); err != nil {
			return nil, err
		}
	}
	return payload.Sources, nil
}

// Build groups catalog entries into per-domain source specs.
func Build(entries []CatalogEntry, client *http.Client) (map[domain.Domain][]ingestion.SourceSpec, error) {
	specs := make(map[domain.Domain][]ingestion.SourceSpec)
	for _, entry := range entries {
		if err := entry.validate(); err != nil {
			return nil, err
		}
		gate, err := namedGate(entry.Gate, entry.GateHours)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.Code, err)
		}
		specs[entry.Domain] = append(specs[entry.Domain], ingestion.SourceSpec{
			Source: NewHTTPSource(entry, client),
			Gate:   gate,
		})
	}
	return specs, nil
}

func namedGate(name string, openHours []int) (ingestion.Gate, error) {
	switch name {
	case "":
		return nil, nil
	case GateWeekend:
		return ingestion.WeekendGate(time.UTC), nil
	case GateWeekdayHours:
		return ingestion.VenueGate(
			time.UTC,
			[]time.Weekday{time.Saturday, time.Sunday},
			complementHours(openHours),
		), nil
	case GateNYSEHours:
		newYork, err := time.LoadLocation("America/New_York")
		if err != nil {
			return nil, fmt.Errorf("load New York tz: %w", err)
		}
		// Regular session only: closed weekends and outside 09:00-16:59 ET.
		closedHours := make([]int, 0, 17)
		for hour := 0; hour < 24; hour++ {
			if hour < 9 || hour > 16 {
				closedHours = append(closedHours, hour)
			}
		}
		return ingestion.VenueGate(newYork, []time.Weekday{time.Saturday, time.Sunday}, closedHours), nil
	default:
		return nil, fmt.Errorf("unknown gate %q", name)
	}
}

func complementHours(openHours []int) []int {
	open := make(map[int]bool, len(openHours))
	for _, hour := range openHours {
		open[hour] = true
	}
	closed := make([]int, 0, 24-len(open))
	for hour := 0; hour < 24; hour++ {
		if !open[hour] {
			closed = append(closed, hour)
		}
	}
	return closed
}

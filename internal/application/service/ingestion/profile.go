package ingestion

import (
	"fmt"
	"time"

	domain "main/internal/domain/entity/instruments"
	"main/internal/domain/interfaces"
)

// SourceSpec pairs a source with an optional trading-calendar gate narrower
// than the domain's. When the source gate is closed its snapshot is dropped
// after the batch settles instead of gating the whole run.
type SourceSpec struct {
	Source interfaces.Source
	Gate   Gate
}

// Profile parameterizes the generic engine for one domain: schedule, gate,
// which named price fields to diff, history retention and the source list.
type Profile struct {
	Domain        domain.Domain
	CronSpec      string
	Gate          Gate
	PriceFields   []string
	HistoryCap    int
	SkipUnchanged bool
	Sources       []SourceSpec
}

// Validate reports profiles the engine cannot run.
func (p Profile) Validate() error {
	if !p.Domain.IsValid() {
		return fmt.Errorf("profile %q: invalid domain", p.Domain)
	}
	if p.CronSpec == "" {
		return fmt.Errorf("profile %s: cron spec is required", p.Domain)
	}
	if p.Gate == nil {
		return fmt.Errorf("profile %s: gate is required (use AlwaysOpen for 24/7 domains)", p.Domain)
	}
	if len(p.PriceFields) == 0 {
		return fmt.Errorf("profile %s: at least one price field is required", p.Domain)
	}
	return nil
}

const defaultHistoryCap = 1000

// DefaultProfiles returns the five domain instantiations without sources
// attached. Cadences and gates mirror the production schedules: forex and
// commodities hourly, crypto every ten minutes, indices every fifteen,
// interbank once per weekday morning.
func DefaultProfiles() map[domain.Domain]Profile {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Shipped tzdata always carries America/New_York; fall back to UTC
		// rather than refusing to boot.
		newYork = time.UTC
	}

	return map[domain.Domain]Profile{
		domain.DomainForex: {
			Domain:      domain.DomainForex,
			CronSpec:    "0 * * * *",
			Gate:        WeekendGate(time.UTC),
			PriceFields: []string{domain.FieldPrice},
			HistoryCap:  defaultHistoryCap,
		},
		domain.DomainCrypto: {
			Domain:      domain.DomainCrypto,
			CronSpec:    "*/10 * * * *",
			Gate:        AlwaysOpen(),
			PriceFields: []string{domain.FieldPrice},
			HistoryCap:  defaultHistoryCap,
		},
		domain.DomainIndices: {
			Domain:      domain.DomainIndices,
			CronSpec:    "*/15 * * * *",
			Gate:        AlwaysOpen(),
			PriceFields: []string{domain.FieldPrice},
			HistoryCap:  defaultHistoryCap,
		},
		domain.DomainCommodities: {
			Domain:      domain.DomainCommodities,
			CronSpec:    "0 * * * *",
			Gate:        VenueGate(newYork, []time.Weekday{time.Saturday}, []int{17}),
			PriceFields: []string{domain.FieldPrice},
			HistoryCap:  defaultHistoryCap,
		},
		domain.DomainInterbank: {
			Domain:      domain.DomainInterbank,
			CronSpec:    "30 8 * * 1-5",
			Gate:        WeekendGate(time.UTC),
			PriceFields: []string{domain.FieldBuying, domain.FieldSelling, domain.FieldMidrate},
			HistoryCap:  defaultHistoryCap,
		},
	}
}

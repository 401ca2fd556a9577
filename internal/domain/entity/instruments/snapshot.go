package instruments

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMissingCode   = errors.New("snapshot has no code")
	ErrMissingPrices = errors.New("snapshot has no price fields")
)

// Snapshot is one fetched reading of an instrument produced by a source
// adapter. History may seed the time series on first creation; it stays nil
// for every subsequent fetch.
type Snapshot struct {
	Domain     Domain
	Code       string
	Name       string
	Attributes map[string]string
	Prices     map[string]float64
	History    []HistoryEntry
}

// Validate checks the snapshot against the domain's required price fields.
// Every required field must be present and finite; NaN and Inf payloads are
// rejected here so they never reach the reconciler.
func (s Snapshot) Validate(fields []string) error {
	if s.Code == "" {
		return ErrMissingCode
	}
	if len(s.Prices) == 0 {
		return ErrMissingPrices
	}
	for _, field := range fields {
		value, ok := s.Prices[field]
		if !ok {
			return fmt.Errorf("snapshot %s: missing price field %q", s.Code, field)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("snapshot %s: price field %q is not finite", s.Code, field)
		}
	}
	return nil
}

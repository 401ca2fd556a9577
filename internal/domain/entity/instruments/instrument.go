package instruments

import "time"

// Named price fields used by the domain profiles. Most domains track a single
// current price; interbank quotes track the bank triplet.
const (
	FieldPrice   = "price"
	FieldBuying  = "buying"
	FieldSelling = "selling"
	FieldMidrate = "midrate"
)

// Instrument is one tradable entity keyed by (Domain, Code). Prices holds the
// named numeric fields a domain tracks: a single "price" for most domains, the
// buying/selling/midrate triplet for interbank quotes. Changes carries the
// derived percentage change per price field.
type Instrument struct {
	Domain      Domain
	Code        string
	Name        string
	Attributes  map[string]string
	Prices      map[string]float64
	Changes     map[string]float64
	LastUpdated time.Time
}

// HistoryEntry is one immutable point of the per-instrument time series.
// Entries are prepended on update and always carry the prices that were
// current immediately before the update, so walking current prices plus the
// history reconstructs the full timeline.
type HistoryEntry struct {
	RecordedAt time.Time
	Prices     map[string]float64
}

// Update describes one atomic update mutation: set the new current prices and
// changes, prepend a history entry with the previous prices, and trim history
// beyond HistoryCap. A nil History skips the prepend; a zero HistoryCap leaves
// history unbounded.
type Update struct {
	Prices      map[string]float64
	Changes     map[string]float64
	LastUpdated time.Time
	History     *HistoryEntry
	HistoryCap  int
}

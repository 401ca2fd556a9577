package ingestion

import "time"

// Gate decides whether a scheduled run (or a single source inside a run)
// should execute at the given instant. A closed gate is a logged no-op, not
// an error.
type Gate func(now time.Time) (open bool, reason string)

// AlwaysOpen gates nothing; used by 24/7 domains such as crypto.
func AlwaysOpen() Gate {
	return func(time.Time) (bool, string) {
		return true, ""
	}
}

// WeekendGate closes on Saturday and Sunday in the given location.
func WeekendGate(loc *time.Location) Gate {
	return func(now time.Time) (bool, string) {
		switch now.In(loc).Weekday() {
		case time.Saturday, time.Sunday:
			return false, "market closed (weekend)"
		default:
			return true, ""
		}
	}
}

// VenueGate closes on the listed weekdays and during the listed clock hours
// in the venue's location. Commodities use it for the New York Saturday halt
// and the 17:00 ET settlement hour.
func VenueGate(loc *time.Location, closedDays []time.Weekday, closedHours []int) Gate {
	days := make(map[time.Weekday]bool, len(closedDays))
	for _, d := range closedDays {
		days[d] = true
	}
	hours := make(map[int]bool, len(closedHours))
	for _, h := range closedHours {
		hours[h] = true
	}
	return func(now time.Time) (bool, string) {
		local := now.In(loc)
		if days[local.Weekday()] {
			return false, "venue closed (" + local.Weekday().String() + ")"
		}
		if hours[local.Hour()] {
			return false, "venue closed (settlement hour)"
		}
		return true, ""
	}
}

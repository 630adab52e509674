package braze

import "time"

// activityWindow is how far behind the last UTC midnight a recency
// signal may sit before the resource stops being imported.
const activityWindow = 24 * time.Hour

// IsActive reports whether a resource is worth importing. Missing
// details or a draft flag disqualify outright. A resource with no
// recency signal at all counts as active. Otherwise last_entry is
// consulted first, then last_sent, then end_at, and the first populated
// field decides alone: it must fall within 24 hours of the last UTC
// midnight, not of the current instant.
func IsActive(details *Details, lastMidnight time.Time) bool {
	if details == nil || details.Draft {
		return false
	}

	recency := details.LastEntry
	if recency == "" {
		recency = details.LastSent
	}
	if recency == "" {
		recency = details.EndAt
	}
	if recency == "" {
		return true
	}

	ts, err := time.Parse(time.RFC3339, recency)
	if err != nil {
		return false
	}
	return lastMidnight.Sub(ts) < activityWindow
}

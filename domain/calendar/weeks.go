// Package calendar generates the life-calendar week grid: one bucket per
// week from the Monday on or before the birth date through the expected
// lifespan. Generation is a pure function of the profile and entries.
package calendar

import (
	"time"

	"github.com/vinayh/lifecal-web/domain/profile"
)

// Week is one grid cell.
type Week struct {
	Start time.Time      `json:"start"`
	Past  bool           `json:"past"`
	Entry *profile.Entry `json:"entry,omitempty"`
}

// startOfWeek returns the Monday on or before d.
func startOfWeek(d time.Time) time.Time {
	d = d.Truncate(24 * time.Hour)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Weeks builds the grid for a record, joining each bucket with the entry
// keyed by its start date. Entries for dates outside the grid are
// ignored. now decides which buckets count as past.
func Weeks(rec *profile.Record, entries map[string]profile.Entry, now time.Time) []Week {
	if rec == nil || rec.Birth.IsZero() || rec.ExpYears <= 0 {
		return nil
	}

	start := startOfWeek(rec.Birth)
	end := start.AddDate(rec.ExpYears, 0, 0)

	var weeks []Week
	for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, 7) {
		w := Week{Start: cur, Past: cur.Before(now)}
		if e, ok := entries[cur.Format(profile.DateLayout)]; ok {
			entry := e
			w.Entry = &entry
		}
		weeks = append(weeks, w)
	}
	return weeks
}

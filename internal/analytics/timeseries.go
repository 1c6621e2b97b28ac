package analytics

import (
	"math"
	"strings"
	"time"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

// Predicate selects the records a series counts.
type Predicate func(record.Record) bool

// Always counts every record.
func Always(record.Record) bool { return true }

// MentionsAny matches records with a symptom containing any of the terms,
// ignoring case.
func MentionsAny(terms ...string) Predicate {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return func(rec record.Record) bool {
		for _, s := range rec.Symptoms {
			s = strings.ToLower(s)
			for _, t := range lowered {
				if strings.Contains(s, t) {
					return true
				}
			}
		}
		return false
	}
}

// Bucket is one calendar unit of a trailing-window series. Its range is
// [Start, next bucket's Start).
type Bucket struct {
	Label     string    `json:"label"`
	FullLabel string    `json:"fullLabel"`
	Start     time.Time `json:"start"`
	Count     int       `json:"count"`
}

// MonthlySeries counts matching records per calendar month over the n months
// ending with the month containing now, oldest first. Records without a
// timestamp or outside the window are ignored.
func MonthlySeries(records []record.Record, now time.Time, n int, loc *time.Location, pred Predicate) []Bucket {
	if loc == nil {
		loc = time.UTC
	}
	if n < 0 {
		n = 0
	}
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month()-time.Month(n-1), 1, 0, 0, 0, 0, loc)

	buckets := make([]Bucket, n)
	for i := range buckets {
		start := time.Date(first.Year(), first.Month()+time.Month(i), 1, 0, 0, 0, 0, loc)
		buckets[i] = Bucket{
			Label:     start.Format("Jan 06"),
			FullLabel: start.Format("January 2006"),
			Start:     start,
		}
	}

	for _, rec := range records {
		if !rec.HasTimestamp || !pred(rec) {
			continue
		}
		t := rec.CreatedAt.In(loc)
		idx := (t.Year()-first.Year())*12 + int(t.Month()) - int(first.Month())
		if idx >= 0 && idx < n {
			buckets[idx].Count++
		}
	}
	return buckets
}

// DailySeries counts matching records per calendar day over the n days ending
// with the day containing now, oldest first.
func DailySeries(records []record.Record, now time.Time, n int, loc *time.Location, pred Predicate) []Bucket {
	if loc == nil {
		loc = time.UTC
	}
	if n < 0 {
		n = 0
	}
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), now.Day()-(n-1), 0, 0, 0, 0, loc)

	buckets := make([]Bucket, n)
	for i := range buckets {
		start := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, loc)
		buckets[i] = Bucket{
			Label:     start.Format("2006-01-02"),
			FullLabel: start.Format("Monday, January 2, 2006"),
			Start:     start,
		}
	}

	for _, rec := range records {
		if !rec.HasTimestamp || !pred(rec) {
			continue
		}
		t := rec.CreatedAt.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		// Days are 23 or 25 hours long across DST changes.
		idx := int(math.Round(day.Sub(first).Hours() / 24))
		if idx >= 0 && idx < n {
			buckets[idx].Count++
		}
	}
	return buckets
}

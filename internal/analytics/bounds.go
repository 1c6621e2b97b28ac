package analytics

import (
	"fmt"
	"time"
)

// ParseBound reads an RFC3339 instant or a YYYY-MM-DD date. A date used as
// an upper bound covers the whole day. An empty string is an open bound.
func ParseBound(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("want RFC3339 or YYYY-MM-DD, got %q", s)
	}
	if upper {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}

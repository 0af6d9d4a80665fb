package harvest

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate parses the date formats sources commonly emit. Values without a
// zone are taken as UTC. Unparseable input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// PubDate normalizes a publication date to YYYY-MM-DD, keeping unparseable
// input as is.
func PubDate(s string) string {
	if t := ParseDate(s); !t.IsZero() {
		return t.Format("2006-01-02")
	}
	return strings.TrimSpace(s)
}

package events

import (
	"fmt"
	"strings"
	"time"
)

const (
	unknownTime   = "Unknown time"
	displayLayout = "02 January 2006 - 03:04 PM UTC"
)

// isoLayouts lists the ISO-8601 extended forms accepted by ParseTime.
// Layouts without a zone parse as UTC.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04-0700",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp. A trailing "Z" is read as "+00:00".
// It returns nil for an empty string and ErrUnparseableTimestamp for anything
// else it cannot read. The returned time keeps the offset it was written with.
func ParseTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z") {
		value = value[:len(value)-1] + "+00:00"
	}
	if len(value) > 10 && value[10] == ' ' {
		value = value[:10] + "T" + value[11:]
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, raw)
}

// FormatTime renders raw for display, e.g. "01 March 2024 - 01:05 PM UTC".
// The wall clock of the parsed value is used and always labelled UTC.
func FormatTime(raw string) (string, error) {
	parsed, err := ParseTime(raw)
	if err != nil {
		return "", err
	}
	return formatParsed(parsed), nil
}

func formatParsed(t *time.Time) string {
	if t == nil {
		return unknownTime
	}
	return t.Format(displayLayout)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := t.UTC()
	return &normalized
}

// Package timefmt turns client supplied timestamps into the single textual
// form the appointments table stores.
package timefmt

import (
	"errors"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Layout is the canonical YYYY-MM-DD HH:mm:ss representation.
const Layout = "2006-01-02 15:04:05"

var (
	ErrEmpty       = errors.New("timestamp is empty")
	ErrUnparseable = errors.New("timestamp is not a recognised date/time")
)

// now.Parse back-fills zero clock fields from the current time when the
// clock is followed by a zone name, so those layouts are tried first.
var zoned = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.RubyDate,
	time.UnixDate,
}

// RFC 2822 zone names. time.Parse only knows these when the host's local
// zone happens to use them, otherwise it reports them with a zero offset.
var namedZones = map[string]int{
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
}

var utcNames = map[string]bool{"": true, "UTC": true, "GMT": true, "UT": true, "Z": true}

// inputs without an explicit offset are read as UTC wall clock
var parser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats:  append([]string{"2006-01-02T15:04:05", "2006-01-02T15:04"}, dated(now.TimeFormats)...),
}

// dated drops layouts without a year; now.Parse fills the missing parts
// from today's date.
func dated(layouts []string) []string {
	var out []string
	for _, l := range layouts {
		if strings.Contains(l, "2006") {
			out = append(out, l)
		}
	}
	return out
}

// Normalize parses raw and re-emits it in Layout. Offsets are folded into
// UTC and sub-second precision is dropped.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	for _, layout := range zoned {
		if t, err := time.Parse(layout, raw); err == nil {
			return fromZone(t, raw)
		}
	}
	t, err := parser.Parse(raw)
	if err != nil {
		return "", ErrUnparseable
	}
	return fromZone(t, raw)
}

// fromZone resolves zone names written in raw that the parser could not
// place. Unknown names are rejected rather than stored as UTC.
func fromZone(t time.Time, raw string) (string, error) {
	name, off := t.Zone()
	if name == "" || !strings.Contains(raw, name) {
		return Format(t), nil
	}
	if fixed, ok := namedZones[name]; ok {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			time.FixedZone(name, fixed))
	} else if off == 0 && !utcNames[name] {
		return "", ErrUnparseable
	}
	return Format(t), nil
}

// Format renders t in Layout after converting it to UTC.
func Format(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(Layout)
}

package feed

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/feeddigest/feeddigest/app/parser"
)

// TimestampSource tags how a publish timestamp was resolved, so callers
// can tell a parsed date from the degraded fallback.
type TimestampSource int

const (
	TimestampParsed TimestampSource = iota
	TimestampDefaulted
)

func (s TimestampSource) String() string {
	if s == TimestampDefaulted {
		return "defaulted"
	}
	return "parsed"
}

var (
	stripPolicy  = bluemonday.StrictPolicy()
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText strips all markup from raw text, collapses whitespace runs to
// a single space and trims. Empty input yields an empty string.
func CleanText(raw string) string {
	if raw == "" {
		return ""
	}

	text := stripPolicy.Sanitize(raw)
	text = html.UnescapeString(text)
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// ResolveTimestamp determines an entry's publish time. It prefers the
// timestamps the parser already resolved, then free-form parsing of the
// raw published/updated strings, and degrades to now when every attempt
// fails. It never errors; the returned source says whether the fallback
// was taken.
func ResolveTimestamp(entry parser.RawEntry, now time.Time) (time.Time, TimestampSource) {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed, TimestampParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed, TimestampParsed
	}

	for _, raw := range []string{entry.Published, entry.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t, TimestampParsed
		}
	}

	return now, TimestampDefaulted
}

package parser

import "time"

// Metadata contains identity fields of the parsed feed document
type Metadata struct {
	Title       string
	Link        string
	Description string
}

// RawEntry is one feed item as delivered by the parser, before
// normalization. The *Parsed fields carry timestamps the parser already
// resolved; the string fields keep the raw date values for the
// normalizer's free-form parsing ladder.
type RawEntry struct {
	Title           string
	Link            string
	Description     string
	Author          string
	Published       string
	Updated         string
	PublishedParsed *time.Time
	UpdatedParsed   *time.Time
}

package database

import (
	"time"
)

// Run log status values. A run log row is immutable once written.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

// Feed represents a subscribed RSS/Atom source identified by URL
type Feed struct {
	ID            string
	URL           string
	Title         string
	Description   string
	IsActive      bool
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Entry represents one article harvested from a feed.
// (FeedID, Link) is unique; keywords are stored as a JSON-encoded
// string array in a text column.
type Entry struct {
	ID          string
	FeedID      string
	Title       string
	Link        string
	Description string
	Author      string
	PublishedAt time.Time
	Keywords    []string
	IsProcessed bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunLog is the audit record of one ingestion attempt
type RunLog struct {
	ID               int64
	FeedID           string
	Status           string
	EntriesProcessed int
	EntriesNew       int
	ErrorMessage     string
	Duration         time.Duration
	CreatedAt        time.Time
}

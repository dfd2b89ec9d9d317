package database

import (
	"time"
)

// EntryInput carries the normalized fields the ingestion pipeline hands to
// the entry upsert. Link and PublishedAt are write-once: the update path
// never touches them.
type EntryInput struct {
	Title       string
	Link        string
	Description string
	Author      string
	PublishedAt time.Time
	Keywords    []string
}

// EntryFilter narrows the entry listing. Zero values mean "no filter".
type EntryFilter struct {
	FeedID  string
	Period  string // today, this_week, this_month
	Keyword string
	Limit   int
}

// EntryWithFeed is an entry joined with its owning feed's identity
type EntryWithFeed struct {
	Entry
	FeedTitle string
	FeedURL   string
}

// FeedWithCounts is a feed annotated with entry statistics
type FeedWithCounts struct {
	Feed
	EntryCount       int
	RecentEntryCount int
}

// RunLogWithFeed is a run log joined with its feed's title
type RunLogWithFeed struct {
	RunLog
	FeedTitle string
}

// KeywordCount is one term of a keyword frequency aggregation
type KeywordCount struct {
	Term  string
	Count int
}

// FeedCount is one feed of a per-feed entry count aggregation
type FeedCount struct {
	FeedTitle string
	Count     int
}

type FeedRepository interface {
	GetByID(id string) (*Feed, error)
	GetByURL(url string) (*Feed, error)
	GetOrCreate(url, title, description string) (*Feed, bool, error)
	UpdateMetadata(id, title, description string) error
	UpdateLastFetched(id string) error
	SetActive(id string, active bool) error
	ListDueForRefresh(olderThan time.Time) ([]Feed, error)
	ListActiveWithCounts(recentSince time.Time) ([]FeedWithCounts, error)
	Count() (int, error)
}

type EntryRepository interface {
	Upsert(feedID string, entry EntryInput) (bool, error)
	List(filter EntryFilter) ([]EntryWithFeed, error)
	CountPublishedToday() (int, error)
	CountPublishedSince(since time.Time) (int, error)
	CountPublishedBetween(from, to time.Time) (int, error)
	KeywordCounts(from, to time.Time, limit int) ([]KeywordCount, error)
	TopFeeds(from, to time.Time, limit int) ([]FeedCount, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type RunLogRepository interface {
	Insert(log *RunLog) error
	Recent(since time.Time, limit int) ([]RunLogWithFeed, error)
	CountByStatus(since time.Time) (map[string]int, error)
}

package api

import (
	"encoding/json"
)

// KeywordPair marshals as a [term, count] tuple
type KeywordPair struct {
	Term  string
	Count int
}

func (p KeywordPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Term, p.Count})
}

type PeriodStats struct {
	Today     int `json:"today"`
	ThisWeek  int `json:"this_week"`
	ThisMonth int `json:"this_month"`
}

type TopFeed struct {
	FeedTitle string `json:"feed__title"`
	Count     int    `json:"count"`
}

type RecentLog struct {
	FeedTitle        string `json:"feed_title"`
	Status           string `json:"status"`
	EntriesProcessed int    `json:"entries_processed"`
	EntriesNew       int    `json:"entries_new"`
	CreatedAt        string `json:"created_at"`
}

type Summary struct {
	PeriodStats PeriodStats   `json:"period_stats"`
	TopKeywords []KeywordPair `json:"top_keywords"`
	TopFeeds    []TopFeed     `json:"top_feeds"`
	RecentLogs  []RecentLog   `json:"recent_logs"`
}

type EntryFeed struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type EntryItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	PublishedAt string    `json:"published_at"`
	Keywords    []string  `json:"keywords"`
	Feed        EntryFeed `json:"feed"`
	TimePeriod  string    `json:"time_period"`
}

type FeedItem struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Description      string  `json:"description"`
	IsActive         bool    `json:"is_active"`
	LastCrawledAt    *string `json:"last_crawled_at"`
	EntryCount       int     `json:"entry_count"`
	RecentEntryCount int     `json:"recent_entry_count"`
}

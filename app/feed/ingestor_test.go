package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feeddigest/feeddigest/app/database"
	"github.com/feeddigest/feeddigest/app/parser"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech Daily</title>
    <link>https://example.com</link>
    <description>Technology news</description>
    <item>
      <title>AI startup raises funding</title>
      <link>https://example.com/articles/1</link>
      <description>&lt;p&gt;Machine learning startup closes round&lt;/p&gt;</description>
      <pubDate>Fri, 15 Mar 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Cloud security update</title>
      <link>https://example.com/articles/2</link>
      <description>Cybersecurity in the cloud</description>
      <pubDate>Fri, 15 Mar 2024 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const missingLinkFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Partial Feed</title>
    <item>
      <title>Good entry</title>
      <link>https://example.com/articles/1</link>
      <pubDate>Fri, 15 Mar 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Entry without link</title>
    </item>
  </channel>
</rss>`

type fakeFeedRepo struct {
	feeds              map[string]*database.Feed
	metadataUpdates    int
	lastFetchedUpdates int
	updateFetchedErr   error
}

func newFakeFeedRepo() *fakeFeedRepo {
	return &fakeFeedRepo{feeds: make(map[string]*database.Feed)}
}

func (f *fakeFeedRepo) GetByID(id string) (*database.Feed, error) {
	for _, fd := range f.feeds {
		if fd.ID == id {
			return fd, nil
		}
	}
	return nil, nil
}

func (f *fakeFeedRepo) GetByURL(url string) (*database.Feed, error) {
	return f.feeds[url], nil
}

func (f *fakeFeedRepo) GetOrCreate(url, title, description string) (*database.Feed, bool, error) {
	if fd, ok := f.feeds[url]; ok {
		return fd, false, nil
	}
	fd := &database.Feed{
		ID:          fmt.Sprintf("feed-%d", len(f.feeds)+1),
		URL:         url,
		Title:       title,
		Description: description,
		IsActive:    true,
	}
	f.feeds[url] = fd
	return fd, true, nil
}

func (f *fakeFeedRepo) UpdateMetadata(id, title, description string) error {
	f.metadataUpdates++
	return nil
}

func (f *fakeFeedRepo) UpdateLastFetched(id string) error {
	if f.updateFetchedErr != nil {
		return f.updateFetchedErr
	}
	f.lastFetchedUpdates++
	return nil
}

func (f *fakeFeedRepo) SetActive(id string, active bool) error { return nil }

func (f *fakeFeedRepo) ListDueForRefresh(olderThan time.Time) ([]database.Feed, error) {
	return nil, nil
}

func (f *fakeFeedRepo) ListActiveWithCounts(recentSince time.Time) ([]database.FeedWithCounts, error) {
	return nil, nil
}

func (f *fakeFeedRepo) Count() (int, error) { return len(f.feeds), nil }

type fakeEntryRepo struct {
	stored    map[string]database.EntryInput
	upsertErr error
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{stored: make(map[string]database.EntryInput)}
}

func (f *fakeEntryRepo) Upsert(feedID string, entry database.EntryInput) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	key := feedID + "|" + entry.Link
	_, exists := f.stored[key]
	f.stored[key] = entry
	return !exists, nil
}

func (f *fakeEntryRepo) List(filter database.EntryFilter) ([]database.EntryWithFeed, error) {
	return nil, nil
}

func (f *fakeEntryRepo) CountPublishedToday() (int, error)                  { return 0, nil }
func (f *fakeEntryRepo) CountPublishedSince(since time.Time) (int, error)   { return 0, nil }
func (f *fakeEntryRepo) CountPublishedBetween(from, to time.Time) (int, error) { return 0, nil }

func (f *fakeEntryRepo) KeywordCounts(from, to time.Time, limit int) ([]database.KeywordCount, error) {
	return nil, nil
}

func (f *fakeEntryRepo) TopFeeds(from, to time.Time, limit int) ([]database.FeedCount, error) {
	return nil, nil
}

func (f *fakeEntryRepo) DeleteOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

type fakeRunLogRepo struct {
	inserted []*database.RunLog
}

func (f *fakeRunLogRepo) Insert(log *database.RunLog) error {
	f.inserted = append(f.inserted, log)
	return nil
}

func (f *fakeRunLogRepo) Recent(since time.Time, limit int) ([]database.RunLogWithFeed, error) {
	return nil, nil
}

func (f *fakeRunLogRepo) CountByStatus(since time.Time) (map[string]int, error) {
	return map[string]int{}, nil
}

func newTestIngestor(client *http.Client, feeds *fakeFeedRepo, entries *fakeEntryRepo, runLogs *fakeRunLogRepo) *Ingestor {
	return &Ingestor{
		httpClient:   client,
		parser:       parser.NewParser(),
		extractor:    NewKeywordExtractor(DefaultVocabulary()),
		feeds:        feeds,
		entries:      entries,
		runLogs:      runLogs,
		userAgent:    "FeedDigest-Test/1.0",
		fetchTimeout: 5 * time.Second,
	}
}

func TestIngestor_CrawlAndSave_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	feeds := newFakeFeedRepo()
	entries := newFakeEntryRepo()
	runLogs := &fakeRunLogRepo{}
	ingestor := newTestIngestor(srv.Client(), feeds, entries, runLogs)

	runLog, err := ingestor.CrawlAndSave(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("CrawlAndSave returned error: %v", err)
	}

	if runLog.Status != database.StatusSuccess {
		t.Errorf("Expected status success, got %s", runLog.Status)
	}
	if runLog.EntriesProcessed != 2 {
		t.Errorf("Expected 2 processed entries, got %d", runLog.EntriesProcessed)
	}
	if runLog.EntriesNew != 2 {
		t.Errorf("Expected 2 new entries, got %d", runLog.EntriesNew)
	}
	if len(runLogs.inserted) != 1 {
		t.Errorf("Expected exactly 1 run log, got %d", len(runLogs.inserted))
	}
	if feeds.lastFetchedUpdates != 1 {
		t.Errorf("Expected last fetched timestamp update, got %d", feeds.lastFetchedUpdates)
	}
	if feeds.metadataUpdates != 1 {
		t.Errorf("Expected metadata update on first fetch, got %d", feeds.metadataUpdates)
	}
}

func TestIngestor_CrawlAndSave_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	feeds := newFakeFeedRepo()
	entries := newFakeEntryRepo()
	runLogs := &fakeRunLogRepo{}
	ingestor := newTestIngestor(srv.Client(), feeds, entries, runLogs)

	if _, err := ingestor.CrawlAndSave(context.Background(), srv.URL); err != nil {
		t.Fatalf("first run returned error: %v", err)
	}

	runLog, err := ingestor.CrawlAndSave(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second run returned error: %v", err)
	}

	if runLog.EntriesNew != 0 {
		t.Errorf("Expected 0 new entries on second run, got %d", runLog.EntriesNew)
	}
	if runLog.EntriesProcessed != 2 {
		t.Errorf("Expected 2 processed entries on second run, got %d", runLog.EntriesProcessed)
	}
	if len(entries.stored) != 2 {
		t.Errorf("Expected entry count unchanged at 2, got %d", len(entries.stored))
	}
}

func TestIngestor_CrawlAndSave_MalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed document"))
	}))
	defer srv.Close()

	feeds := newFakeFeedRepo()
	entries := newFakeEntryRepo()
	runLogs := &fakeRunLogRepo{}
	ingestor := newTestIngestor(srv.Client(), feeds, entries, runLogs)

	runLog, err := ingestor.CrawlAndSave(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected error for malformed feed")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("Expected *FetchError, got %T", err)
	}
	if runLog != nil {
		t.Error("Expected nil run log for fetch failure")
	}
	if len(runLogs.inserted) != 0 {
		t.Errorf("Expected no run log written, got %d", len(runLogs.inserted))
	}
}

func TestIngestor_CrawlAndSave_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ingestor := newTestIngestor(srv.Client(), newFakeFeedRepo(), newFakeEntryRepo(), &fakeRunLogRepo{})

	_, err := ingestor.CrawlAndSave(context.Background(), srv.URL)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("Expected *FetchError for HTTP 500, got %v", err)
	}
}

func TestIngestor_CrawlAndSave_PartialRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(missingLinkFeedXML))
	}))
	defer srv.Close()

	feeds := newFakeFeedRepo()
	entries := newFakeEntryRepo()
	runLogs := &fakeRunLogRepo{}
	ingestor := newTestIngestor(srv.Client(), feeds, entries, runLogs)

	runLog, err := ingestor.CrawlAndSave(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("CrawlAndSave returned error: %v", err)
	}

	if runLog.Status != database.StatusPartial {
		t.Errorf("Expected status partial, got %s", runLog.Status)
	}
	if runLog.EntriesProcessed != 1 {
		t.Errorf("Expected 1 processed entry, got %d", runLog.EntriesProcessed)
	}
	if runLog.ErrorMessage == "" {
		t.Error("Expected error message for skipped entry")
	}
}

func TestIngestor_CrawlAndSave_ErrorWhenNothingPersisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	feeds := newFakeFeedRepo()
	entries := newFakeEntryRepo()
	entries.upsertErr = errors.New("storage unavailable")
	runLogs := &fakeRunLogRepo{}
	ingestor := newTestIngestor(srv.Client(), feeds, entries, runLogs)

	runLog, err := ingestor.CrawlAndSave(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("CrawlAndSave returned error: %v", err)
	}

	if runLog.Status != database.StatusError {
		t.Errorf("Expected status error when nothing persisted, got %s", runLog.Status)
	}
	if runLog.EntriesProcessed != 0 || runLog.EntriesNew != 0 {
		t.Errorf("Expected zero counts, got processed=%d new=%d", runLog.EntriesProcessed, runLog.EntriesNew)
	}
}

func TestIngestor_CrawlAndSave_FeedUpdateFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	feeds := newFakeFeedRepo()
	feeds.updateFetchedErr = errors.New("database gone")
	entries := newFakeEntryRepo()
	runLogs := &fakeRunLogRepo{}
	ingestor := newTestIngestor(srv.Client(), feeds, entries, runLogs)

	runLog, err := ingestor.CrawlAndSave(context.Background(), srv.URL)

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Expected *RunError, got %v", err)
	}
	if runLog == nil {
		t.Fatal("Expected run log to be written before re-raising")
	}
	if runLog.Status != database.StatusError {
		t.Errorf("Expected status error, got %s", runLog.Status)
	}
	if runLog.EntriesProcessed != 0 || runLog.EntriesNew != 0 {
		t.Errorf("Expected zero counts, got processed=%d new=%d", runLog.EntriesProcessed, runLog.EntriesNew)
	}
}

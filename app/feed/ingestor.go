package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/feeddigest/feeddigest/app/cfg"
	"github.com/feeddigest/feeddigest/app/database"
	"github.com/feeddigest/feeddigest/app/parser"
)

// Ingestor orchestrates one ingestion run: fetch, parse, normalize,
// upsert, audit.
type Ingestor struct {
	httpClient   *http.Client
	parser       *parser.Parser
	extractor    *KeywordExtractor
	feeds        database.FeedRepository
	entries      database.EntryRepository
	runLogs      database.RunLogRepository
	userAgent    string
	fetchTimeout time.Duration
}

func NewIngestor(httpClient *http.Client, feedParser *parser.Parser, extractor *KeywordExtractor,
	feeds database.FeedRepository, entries database.EntryRepository,
	runLogs database.RunLogRepository) *Ingestor {
	c := cfg.Get()

	return &Ingestor{
		httpClient:   httpClient,
		parser:       feedParser,
		extractor:    extractor,
		feeds:        feeds,
		entries:      entries,
		runLogs:      runLogs,
		userAgent:    c.UserAgent,
		fetchTimeout: time.Duration(c.FetchTimeout) * time.Second,
	}
}

// CrawlAndSave runs the full pipeline for one feed URL.
//
// A fetch or parse failure returns a *FetchError and writes no run log;
// the caller records the attempt. Per-entry failures are buffered and the
// run continues. Exactly one run log is written for every run that gets
// past the fetch: success when the error buffer is empty, partial when
// some entries were persisted alongside errors, error when errors occurred
// and nothing was persisted or the feed update itself failed.
func (i *Ingestor) CrawlAndSave(ctx context.Context, feedURL string) (*database.RunLog, error) {
	start := time.Now()

	fd, created, err := i.feeds.GetOrCreate(feedURL, defaultFeedTitle(feedURL), "")
	if err != nil {
		return nil, fmt.Errorf("failed to look up feed: %w", err)
	}

	data, err := i.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	metadata, rawEntries, err := i.parser.Run(data)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	if created && metadata.Title != "" {
		if err := i.feeds.UpdateMetadata(fd.ID, metadata.Title, CleanText(metadata.Description)); err != nil {
			slog.Warn("Failed to update feed metadata", "feed", feedURL, "error", err)
		}
	}

	var errBuf []string
	processed := 0
	newCount := 0
	now := time.Now().UTC()

	for _, raw := range rawEntries {
		entry, err := i.normalizeEntry(raw, now)
		if err != nil {
			slog.Warn("Skipping entry", "feed", feedURL, "error", err)
			errBuf = append(errBuf, err.Error())
			continue
		}

		wasCreated, err := i.entries.Upsert(fd.ID, entry)
		if err != nil {
			slog.Warn("Failed to persist entry", "feed", feedURL, "link", entry.Link, "error", err)
			errBuf = append(errBuf, fmt.Sprintf("entry %s: %v", entry.Link, err))
			continue
		}

		processed++
		if wasCreated {
			newCount++
		}
	}

	if err := i.feeds.UpdateLastFetched(fd.ID); err != nil {
		runLog := &database.RunLog{
			FeedID:       fd.ID,
			Status:       database.StatusError,
			ErrorMessage: err.Error(),
			Duration:     time.Since(start),
		}
		if insertErr := i.runLogs.Insert(runLog); insertErr != nil {
			slog.Error("Failed to write run log", "feed", feedURL, "error", insertErr)
			return nil, &RunError{FeedURL: feedURL, Err: err}
		}
		return runLog, &RunError{FeedURL: feedURL, Err: err}
	}

	status := database.StatusSuccess
	if len(errBuf) > 0 {
		if processed > 0 {
			status = database.StatusPartial
		} else {
			status = database.StatusError
		}
	}

	runLog := &database.RunLog{
		FeedID:           fd.ID,
		Status:           status,
		EntriesProcessed: processed,
		EntriesNew:       newCount,
		ErrorMessage:     strings.Join(errBuf, "\n"),
		Duration:         time.Since(start),
	}
	if err := i.runLogs.Insert(runLog); err != nil {
		return nil, fmt.Errorf("failed to write run log: %w", err)
	}

	slog.Info("Ingestion run completed",
		"feed", feedURL,
		"status", status,
		"processed", processed,
		"new", newCount,
		"duration", runLog.Duration)

	return runLog, nil
}

// normalizeEntry turns a raw parsed entry into persistable form. An entry
// without a link cannot be identified and is a per-entry failure.
func (i *Ingestor) normalizeEntry(raw parser.RawEntry, now time.Time) (database.EntryInput, error) {
	link := strings.TrimSpace(raw.Link)
	if link == "" {
		return database.EntryInput{}, fmt.Errorf("entry %q has no link", raw.Title)
	}

	title := CleanText(raw.Title)
	description := CleanText(raw.Description)

	publishedAt, source := ResolveTimestamp(raw, now)
	if source == TimestampDefaulted {
		slog.Debug("Publish date unparseable, using ingestion time", "link", link)
	}

	return database.EntryInput{
		Title:       title,
		Link:        link,
		Description: description,
		Author:      CleanText(raw.Author),
		PublishedAt: publishedAt,
		Keywords:    i.extractor.Extract(title + " " + description),
	}, nil
}

func (i *Ingestor) fetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, i.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	req.Header.Set("User-Agent", i.userAgent)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: feedURL, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	return data, nil
}

// defaultFeedTitle derives a creation-time title from the feed URL;
// parsed feed metadata replaces it right after the first successful parse
func defaultFeedTitle(feedURL string) string {
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		return u.Host
	}
	return feedURL
}

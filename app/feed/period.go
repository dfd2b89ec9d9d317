package feed

import "time"

// TimePeriod classifies a publish time relative to now by calendar date:
// today, this_week (7 days), this_month (30 days) or older.
func TimePeriod(published, now time.Time) string {
	py, pm, pd := published.Date()
	pubDate := time.Date(py, pm, pd, 0, 0, 0, 0, time.UTC)

	ny, nm, nd := now.Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)

	switch {
	case pubDate.Equal(today):
		return "today"
	case !pubDate.Before(today.AddDate(0, 0, -7)):
		return "this_week"
	case !pubDate.Before(today.AddDate(0, 0, -30)):
		return "this_month"
	default:
		return "older"
	}
}

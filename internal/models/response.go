package models

// Paginated is the envelope used by every list endpoint of the read API.
type Paginated[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Items    []T   `json:"items"`
}

// StatsOverview is returned by GET /api/v1/stats/overview.
type StatsOverview struct {
	TotalEvents      int64 `json:"total_events"`
	TotalShowings    int64 `json:"total_showings"`
	TotalListings    int64 `json:"total_listings"`
	TotalProspects   int64 `json:"total_prospects"`
	UpcomingShowings int64 `json:"upcoming_showings"`
	RecentEvents24h  int64 `json:"recent_events_24h"`
}

// DateCount is one bucket of GET /api/v1/stats/showings-by-date.
type DateCount struct {
	Date  string `db:"date" json:"date"`
	Count int64  `db:"count" json:"count"`
}

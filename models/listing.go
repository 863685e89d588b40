// Package models defines data structures shared across the scraper.
package models

import "time"

// SourceID identifies one supported marketplace.
type SourceID string

// Supported marketplaces.
const (
	SourceStubHub      SourceID = "stubhub"
	SourceSeatGeek     SourceID = "seatgeek"
	SourceVividSeats   SourceID = "vividseats"
	SourceGametime     SourceID = "gametime"
	SourceTicketmaster SourceID = "ticketmaster"
)

// AllSources lists every marketplace the scraper knows about.
func AllSources() []SourceID {
	return []SourceID{
		SourceStubHub,
		SourceSeatGeek,
		SourceVividSeats,
		SourceGametime,
		SourceTicketmaster,
	}
}

// Valid reports whether the identifier names a supported marketplace.
func (s SourceID) Valid() bool {
	switch s {
	case SourceStubHub, SourceSeatGeek, SourceVividSeats, SourceGametime, SourceTicketmaster:
		return true
	}
	return false
}

// ScrapeRequest describes one orchestration run. Immutable once submitted.
type ScrapeRequest struct {
	Sources     []SourceID
	SearchQuery string
	// DirectURLs overrides SearchQuery for the sources it names.
	DirectURLs  map[SourceID]string
	Concurrency int
}

// RawListing is a ticket listing as extracted from a page, before validation.
// Any field may be empty or malformed.
type RawListing struct {
	Price     string
	Section   string
	Row       string
	Seat      string
	Quantity  int
	Source    SourceID
	SourceURL string
	FetchedAt time.Time
}

// Listing is a validated, normalized ticket listing.
type Listing struct {
	Price     float64   `csv:"price" json:"price"`
	Section   string    `csv:"section" json:"section"`
	Row       string    `csv:"row" json:"row"`
	Seat      string    `csv:"seat" json:"seat"`
	Quantity  int       `csv:"quantity" json:"quantity"`
	Source    SourceID  `csv:"source" json:"source"`
	SourceURL string    `csv:"source_url" json:"source_url"`
	FetchedAt time.Time `csv:"fetched_at" json:"fetched_at"`
	DedupHash string    `csv:"dedup_hash" json:"dedup_hash"`
	// Duplicate marks a listing whose hash was already seen by this process.
	Duplicate bool `csv:"duplicate" json:"duplicate"`
}

// SourceStatus is the outcome of one source's scrape.
type SourceStatus string

const (
	StatusSuccess        SourceStatus = "success"
	StatusPartialFailure SourceStatus = "partial_failure"
	StatusFailure        SourceStatus = "failure"
)

// SourceResult holds everything one source produced during a run.
// Immutable after the source scraper returns it.
type SourceResult struct {
	Source   SourceID
	Status   SourceStatus
	Listings []Listing
	Err      string
	Attempts int
	Rejected int
	Elapsed  time.Duration
}

// ReportStatus is the overall outcome of an orchestration run.
type ReportStatus string

const (
	ReportSuccess ReportStatus = "success"
	ReportPartial ReportStatus = "partial"
	ReportFailed  ReportStatus = "failed"
)

// Summary tallies per-source outcomes.
type Summary struct {
	Succeeded     int
	Failed        int
	TotalListings int
}

// Report aggregates every source's result for one run. The caller owns it
// exclusively once the orchestrator returns.
type Report struct {
	PerSource   map[SourceID]SourceResult
	Listings    []Listing
	Summary     Summary
	Status      ReportStatus
	GeneratedAt time.Time
}

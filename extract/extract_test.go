package extract

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

var testSelectors = Selectors{
	Container: []string{".modern-card", "div.listing"},
	Price:     []string{".modern-price", "span.price"},
	Section:   []string{"span.section"},
	Row:       []string{"span.row"},
	Seat:      []string{"span.seat"},
	Quantity:  []string{"span.quantity"},
}

func page(html string) fetch.Page {
	return fetch.Page{
		URL:       "http://tickets.test/event/1",
		HTML:      html,
		FetchedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestSelectorExtractorFullCards(t *testing.T) {
	e := NewSelectorExtractor(models.SourceStubHub, testSelectors)

	listings, err := e.Extract(page(`
		<html><body>
			<div class="listing">
				<span class="price">$120.50</span>
				<span class="section">114</span>
				<span class="row">G</span>
				<span class="seat">7</span>
				<span class="quantity">2 tickets</span>
			</div>
			<div class="listing">
				<span class="price">$88</span>
				<span class="section">220</span>
				<span class="row">A</span>
			</div>
		</body></html>`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}

	first := listings[0]
	if first.Price != "$120.50" || first.Section != "114" || first.Row != "G" || first.Seat != "7" {
		t.Fatalf("unexpected first listing: %+v", first)
	}
	if first.Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", first.Quantity)
	}
	if first.Source != models.SourceStubHub {
		t.Fatalf("source = %q", first.Source)
	}
	if first.SourceURL != "http://tickets.test/event/1" {
		t.Fatalf("source url = %q", first.SourceURL)
	}
	if first.FetchedAt.IsZero() {
		t.Fatalf("fetched-at not carried over")
	}

	// Missing row/quantity/seat stay zero-valued rather than failing.
	second := listings[1]
	if second.Seat != "" || second.Quantity != 0 {
		t.Fatalf("missing fields should stay empty: %+v", second)
	}
}

func TestSelectorExtractorFallbackChain(t *testing.T) {
	e := NewSelectorExtractor(models.SourceSeatGeek, testSelectors)

	listings, err := e.Extract(page(`
		<div class="modern-card">
			<span class="modern-price">$45</span>
			<span class="section">GA</span>
		</div>`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}
	if listings[0].Price != "$45" {
		t.Fatalf("fallback price = %q, want $45", listings[0].Price)
	}
}

func TestSelectorExtractorEmptyPage(t *testing.T) {
	e := NewSelectorExtractor(models.SourceStubHub, testSelectors)

	listings, err := e.Extract(page("<html><body><p>No tickets currently available.</p></body></html>"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("got %d listings, want 0", len(listings))
	}
}

func TestSelectorExtractorSkipsChromeCards(t *testing.T) {
	e := NewSelectorExtractor(models.SourceStubHub, testSelectors)

	listings, err := e.Extract(page(`
		<div class="listing"><a href="/next">Next page</a></div>
		<div class="listing"><span class="price">$10</span><span class="section">1</span></div>`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1 (chrome card skipped)", len(listings))
	}
}

func TestDefaultRegistryCoversAllSources(t *testing.T) {
	r := DefaultRegistry()
	for _, source := range models.AllSources() {
		if _, ok := r.Lookup(source); !ok {
			t.Fatalf("no strategy registered for %q", source)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2 tickets", 2},
		{"Qty: 4", 4},
		{"1", 1},
		{"pair", 0},
	}
	for _, tt := range tests {
		if got := parseQuantity(tt.in); got != tt.want {
			t.Errorf("parseQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

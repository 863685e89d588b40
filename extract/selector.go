package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

// Selectors drives a SelectorExtractor. Each field carries a fallback chain:
// candidates are tried in order and the first match wins, which survives the
// frequent small markup changes these sites ship.
type Selectors struct {
	Container []string // listing card candidates
	Price     []string
	Section   []string
	Row       []string
	Seat      []string
	Quantity  []string
}

// SelectorExtractor extracts listings with CSS selector chains.
type SelectorExtractor struct {
	source    models.SourceID
	selectors Selectors
}

// NewSelectorExtractor builds a strategy for one source.
func NewSelectorExtractor(source models.SourceID, selectors Selectors) *SelectorExtractor {
	return &SelectorExtractor{source: source, selectors: selectors}
}

// Source identifies the marketplace this strategy parses.
func (e *SelectorExtractor) Source() models.SourceID {
	return e.source
}

// Extract parses listing cards out of the page. A page with no matching
// cards yields an empty slice, not an error.
func (e *SelectorExtractor) Extract(page fetch.Page) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, &ExtractionError{Source: e.source, Err: fmt.Errorf("parse html: %w", err)}
	}

	cards := e.findAll(doc, e.selectors.Container)
	listings := make([]models.RawListing, 0, len(cards))
	for _, card := range cards {
		raw := models.RawListing{
			Price:     firstText(card, e.selectors.Price),
			Section:   firstText(card, e.selectors.Section),
			Row:       firstText(card, e.selectors.Row),
			Seat:      firstText(card, e.selectors.Seat),
			Source:    e.source,
			SourceURL: page.URL,
			FetchedAt: page.FetchedAt,
		}
		if raw.FetchedAt.IsZero() {
			raw.FetchedAt = time.Now()
		}
		if qty := firstText(card, e.selectors.Quantity); qty != "" {
			raw.Quantity = parseQuantity(qty)
		}
		// A card with neither price nor section is navigation chrome that
		// happened to match the container selector.
		if raw.Price == "" && raw.Section == "" {
			continue
		}
		listings = append(listings, raw)
	}
	return listings, nil
}

func (e *SelectorExtractor) findAll(doc *goquery.Document, chain []string) []*goquery.Selection {
	for _, selector := range chain {
		found := doc.Find(selector)
		if found.Length() == 0 {
			continue
		}
		out := make([]*goquery.Selection, 0, found.Length())
		found.Each(func(_ int, s *goquery.Selection) {
			out = append(out, s)
		})
		return out
	}
	return nil
}

func firstText(card *goquery.Selection, chain []string) string {
	for _, selector := range chain {
		if text := strings.TrimSpace(card.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func parseQuantity(text string) int {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r < '0' || r > '9'
	})
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			return n
		}
	}
	return 0
}

// builtinSelectors holds the per-marketplace selector tables. These are the
// throwaway part of the system: expect to update them whenever a site ships
// a redesign.
var builtinSelectors = map[models.SourceID]Selectors{
	models.SourceStubHub: {
		Container: []string{"[data-testid='listing-row']", ".listing-row", "div.ticket-listing"},
		Price:     []string{"[data-testid='listing-price']", ".listing-price", "span.price"},
		Section:   []string{"[data-testid='listing-section']", ".listing-section", "span.section"},
		Row:       []string{"[data-testid='listing-row-name']", ".listing-row-name", "span.row"},
		Seat:      []string{"[data-testid='listing-seat']", "span.seat"},
		Quantity:  []string{"[data-testid='listing-quantity']", ".listing-quantity", "span.quantity"},
	},
	models.SourceSeatGeek: {
		Container: []string{"[data-listing-id]", ".listing-card", "div.listing"},
		Price:     []string{".listing-card__price", "[data-price]", "span.price"},
		Section:   []string{".listing-card__section", "span.section"},
		Row:       []string{".listing-card__row", "span.row"},
		Seat:      []string{".listing-card__seat", "span.seat"},
		Quantity:  []string{".listing-card__quantity", "span.quantity"},
	},
	models.SourceVividSeats: {
		Container: []string{"[data-testid='listing-group'] [data-testid='listing']", ".ticket-row", "div.listing"},
		Price:     []string{"[data-testid='listing-price']", ".ticket-row__price", "span.price"},
		Section:   []string{"[data-testid='listing-section']", ".ticket-row__section", "span.section"},
		Row:       []string{"[data-testid='listing-row']", ".ticket-row__row", "span.row"},
		Seat:      []string{"span.seat"},
		Quantity:  []string{"[data-testid='listing-quantity']", "span.quantity"},
	},
	models.SourceGametime: {
		Container: []string{"[data-testid='listing-card']", ".listing-card", "div.listing"},
		Price:     []string{"[data-testid='price']", ".listing-card__price", "span.price"},
		Section:   []string{"[data-testid='section']", "span.section"},
		Row:       []string{"[data-testid='row']", "span.row"},
		Seat:      []string{"span.seat"},
		Quantity:  []string{"[data-testid='quantity']", "span.quantity"},
	},
	models.SourceTicketmaster: {
		Container: []string{"[data-bdd='quick-picks-list-item']", "li.quick-picks__option", "div.listing"},
		Price:     []string{"[data-bdd='quick-pick-price']", "span.price"},
		Section:   []string{"[data-bdd='quick-pick-section']", "span.section"},
		Row:       []string{"[data-bdd='quick-pick-row']", "span.row"},
		Seat:      []string{"span.seat"},
		Quantity:  []string{"[data-bdd='quick-pick-quantity']", "span.quantity"},
	},
}

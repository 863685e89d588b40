// Package parser validates and normalizes raw listings.
package parser

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-tickets/config"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

// Rejection explains why a raw listing was dropped. It is never fatal to the
// scrape; callers count rejections and move on.
type Rejection struct {
	Reason string
}

func (r Rejection) Error() string {
	return "rejected: " + r.Reason
}

// Normalize validates a raw listing and produces its canonical form.
func Normalize(raw models.RawListing, bounds config.PriceBounds) (models.Listing, error) {
	if !raw.Source.Valid() {
		return models.Listing{}, Rejection{Reason: fmt.Sprintf("unknown source %q", raw.Source)}
	}

	price, err := ParsePrice(raw.Price)
	if err != nil {
		return models.Listing{}, Rejection{Reason: err.Error()}
	}
	if price < bounds.Min || price > bounds.Max {
		return models.Listing{}, Rejection{
			Reason: fmt.Sprintf("price %.2f outside plausible range [%.2f, %.2f]", price, bounds.Min, bounds.Max),
		}
	}

	quantity := raw.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	section := strings.TrimSpace(raw.Section)
	row := strings.TrimSpace(raw.Row)

	fetchedAt := raw.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	return models.Listing{
		Price:     price,
		Section:   section,
		Row:       row,
		Seat:      strings.TrimSpace(raw.Seat),
		Quantity:  quantity,
		Source:    raw.Source,
		SourceURL: raw.SourceURL,
		FetchedAt: fetchedAt,
		DedupHash: DedupHash(raw.Source, price, section, row),
	}, nil
}

// ParsePrice turns a scraped price string into a positive decimal. Currency
// symbols, whitespace, and thousands separators are stripped first.
func ParsePrice(text string) (float64, error) {
	cleaned := cleanPrice(text)
	if cleaned == "" {
		return 0, fmt.Errorf("price missing")
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q not parseable", text)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price %q not positive", text)
	}
	return price, nil
}

func cleanPrice(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			// thousands separator
		case r == '+':
			// "each" markers like "$45+" end the number
			return b.String()
		}
	}
	return b.String()
}

// DedupHash derives a stable key identifying likely-duplicate listings. Two
// listings from the same source with the same price, section, and row hash
// identically.
func DedupHash(source models.SourceID, price float64, section, row string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%.2f|%s|%s", source, price, strings.TrimSpace(section), strings.TrimSpace(row))
	return strconv.FormatUint(h.Sum64(), 16)
}

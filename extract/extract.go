// Package extract turns fetched pages into raw ticket listings. Each source
// supplies its own strategy; orchestration code never branches on source
// identity beyond picking one from the registry.
package extract

import (
	"fmt"

	"github.com/aluiziolira/go-scrape-tickets/fetch"
	"github.com/aluiziolira/go-scrape-tickets/models"
)

// Extractor parses one source's pages into raw listings. Missing fields are
// left zero-valued; only structurally unparseable input is an error.
type Extractor interface {
	Source() models.SourceID
	Extract(page fetch.Page) ([]models.RawListing, error)
}

// ExtractionError marks input the strategy could not make sense of at all.
type ExtractionError struct {
	Source models.SourceID
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Registry maps sources to their strategies.
type Registry struct {
	extractors map[models.SourceID]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[models.SourceID]Extractor)}
}

// Register adds or replaces the strategy for its source.
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Source()] = e
}

// Lookup returns the strategy for a source.
func (r *Registry) Lookup(source models.SourceID) (Extractor, bool) {
	e, ok := r.extractors[source]
	return e, ok
}

// Sources lists every source with a registered strategy.
func (r *Registry) Sources() []models.SourceID {
	out := make([]models.SourceID, 0, len(r.extractors))
	for s := range r.extractors {
		out = append(out, s)
	}
	return out
}

// DefaultRegistry wires the built-in selector tables for every supported
// marketplace.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for source, selectors := range builtinSelectors {
		r.Register(NewSelectorExtractor(source, selectors))
	}
	return r
}

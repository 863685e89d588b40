package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-tickets/models"
)

type collectingWriter struct {
	mu       sync.Mutex
	listings []models.Listing
	failWith error
}

func (cw *collectingWriter) Write(listings []models.Listing) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.failWith != nil {
		return cw.failWith
	}
	cw.listings = append(cw.listings, listings...)
	return nil
}

func (cw *collectingWriter) Close() error { return nil }

func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.listings)
}

func listing(hash string) models.Listing {
	return models.Listing{
		Price:     45,
		Section:   "114",
		Row:       "G",
		Quantity:  1,
		Source:    models.SourceStubHub,
		FetchedAt: time.Now(),
		DedupHash: hash,
	}
}

func TestPipelineWritesListings(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.Start(2)

	if err := p.Process([]models.Listing{listing("a"), listing("b"), listing("c")}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.count(); got != 3 {
		t.Fatalf("wrote %d listings, want 3", got)
	}
	metrics := p.GetMetrics()
	if written, _ := metrics["written_listings"].(int64); written != 3 {
		t.Fatalf("written counter = %v, want 3", metrics["written_listings"])
	}
}

func TestPipelineDeduplicatesByHash(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.Start(1)

	if err := p.Process([]models.Listing{listing("same"), listing("same"), listing("other")}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.count(); got != 2 {
		t.Fatalf("wrote %d listings, want 2 after dedup", got)
	}
}

func TestPipelineSkipsFlaggedDuplicates(t *testing.T) {
	writer := &collectingWriter{}
	p := NewPipeline(writer)
	p.SkipDuplicates = true
	p.Start(1)

	dup := listing("x")
	dup.Duplicate = true
	if err := p.Process([]models.Listing{dup, listing("y")}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.count(); got != 1 {
		t.Fatalf("wrote %d listings, want 1", got)
	}
	metrics := p.GetMetrics()
	if skipped, _ := metrics["skipped_duplicates"].(int64); skipped != 1 {
		t.Fatalf("skipped counter = %v, want 1", metrics["skipped_duplicates"])
	}
}

func TestPipelineRejectsAfterClose(t *testing.T) {
	p := NewPipeline(&collectingWriter{})
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process([]models.Listing{listing("z")}); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("err = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineSurfacesWriterError(t *testing.T) {
	writer := &collectingWriter{failWith: errors.New("disk full")}
	p := NewPipeline(writer)
	p.Start(1)

	if err := p.Process([]models.Listing{listing("a")}); err != nil {
		t.Fatalf("process: %v", err)
	}
	err := p.Close()
	if err == nil || !errors.Is(err, writer.failWith) {
		t.Fatalf("close err = %v, want wrapped disk full", err)
	}
}

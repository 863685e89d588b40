package fetch

import "sync"

// Identity is one client fingerprint presented to a target site.
type Identity struct {
	UserAgent string
	Headers   map[string]string
}

// IdentityProvider hands out fingerprints. Scrapers may rotate identity
// between retries to reduce repeat-challenge likelihood.
type IdentityProvider interface {
	Next() Identity
}

// RotatingIdentities cycles through a fixed pool.
type RotatingIdentities struct {
	mu         sync.Mutex
	identities []Identity
	index      int
}

// NewRotatingIdentities builds a provider over the given pool. An empty pool
// falls back to a small set of common desktop browser fingerprints.
func NewRotatingIdentities(identities []Identity) *RotatingIdentities {
	if len(identities) == 0 {
		identities = defaultIdentityPool()
	}
	return &RotatingIdentities{identities: identities}
}

// Next returns the next identity in round-robin order.
func (r *RotatingIdentities) Next() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.identities[r.index%len(r.identities)]
	r.index++
	return id
}

func defaultIdentityPool() []Identity {
	common := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	return []Identity{
		{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			Headers:   common,
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
			Headers:   common,
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
			Headers:   common,
		},
		{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			Headers:   common,
		},
	}
}

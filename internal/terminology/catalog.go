package terminology

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound reports that a catalog holds no entry for a lookup. Resolution
// treats it as a signal to continue down the fallback chain, never as a
// caller-visible failure.
var ErrNotFound = errors.New("terminology: concept not found")

// Concept is one catalog entry: the display text for a code within a coding
// system, optionally in a specific language.
type Concept struct {
	Code     string
	System   string
	Language string
	Display  string
}

// Catalog is the read-only concept store consulted during resolution. The
// engine only ever performs point lookups; population happens out of
// process.
type Catalog interface {
	// Lookup returns the concept for an exact (code, system) match,
	// preferring an entry in lang when one exists.
	Lookup(ctx context.Context, code, system, lang string) (*Concept, error)

	// LookupCode returns a concept matching code in any system. A degraded
	// match used only for display, never to assert correctness.
	LookupCode(ctx context.Context, code, lang string) (*Concept, error)
}

type conceptKey struct {
	code   string
	system string
	lang   string
}

// MemoryCatalog is an in-memory Catalog, used when no catalog database is
// configured and by tests. Safe for concurrent use.
type MemoryCatalog struct {
	mu       sync.RWMutex
	concepts map[conceptKey]*Concept
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{concepts: make(map[conceptKey]*Concept)}
}

// Add registers a concept. The zero Language registers the catalog's
// default-language text for the code.
func (c *MemoryCatalog) Add(concept Concept) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := concept
	c.concepts[conceptKey{concept.Code, concept.System, normalizeLang(concept.Language)}] = &cp
}

// Lookup implements Catalog.
func (c *MemoryCatalog) Lookup(ctx context.Context, code, system, lang string) (*Concept, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if concept, ok := c.concepts[conceptKey{code, system, normalizeLang(lang)}]; ok {
		return concept, nil
	}
	if concept, ok := c.concepts[conceptKey{code, system, ""}]; ok {
		return concept, nil
	}
	return nil, ErrNotFound
}

// LookupCode implements Catalog.
func (c *MemoryCatalog) LookupCode(ctx context.Context, code, lang string) (*Concept, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Deterministic pick: prefer a language match, then the lowest system
	// identifier, so repeated extractions of one document agree.
	norm := normalizeLang(lang)
	var best *Concept
	var bestKey conceptKey
	for key, concept := range c.concepts {
		if key.code != code {
			continue
		}
		if key.lang != norm && key.lang != "" {
			continue
		}
		if best == nil {
			best, bestKey = concept, key
			continue
		}
		langWins := key.lang == norm && bestKey.lang != norm
		langLoses := key.lang != norm && bestKey.lang == norm
		if langWins || (!langLoses && key.system < bestKey.system) {
			best, bestKey = concept, key
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, ErrNotFound
}

// Len returns the number of registered concepts.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.concepts)
}

func normalizeLang(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

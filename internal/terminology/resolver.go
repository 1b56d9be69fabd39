package terminology

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Confidence grades how a display text was obtained.
type Confidence string

const (
	// ConfidenceExact means the catalog matched both code and system.
	ConfidenceExact Confidence = "exact"
	// ConfidenceDegraded means only the code matched, the system did not.
	// Usable for display, never to assert correctness.
	ConfidenceDegraded Confidence = "degraded"
	// ConfidenceFallback means the label was synthesized from the system
	// name table and the raw code.
	ConfidenceFallback Confidence = "fallback"
)

// Resolution is the result of resolving one (code, system) pair.
type Resolution struct {
	Display    string
	Confidence Confidence
}

// Metrics is the cache-instrumentation surface of the resolver.
type Metrics interface {
	CacheHit()
	CacheMiss()
}

type nopMetrics struct{}

func (nopMetrics) CacheHit()  {}
func (nopMetrics) CacheMiss() {}

// Resolver turns (code, system) pairs into display text via the catalog and
// a deterministic fallback chain. The cache is owned by the Resolver so test
// suites can construct isolated instances; a production process shares one
// Resolver across all documents.
type Resolver struct {
	catalog     Catalog
	defaultLang string
	log         zerolog.Logger
	metrics     Metrics

	mu    sync.RWMutex
	cache map[conceptKey]Resolution
}

// NewResolver creates a resolver over catalog. defaultLang is used when a
// caller passes an empty language.
func NewResolver(catalog Catalog, defaultLang string, log zerolog.Logger) *Resolver {
	return &Resolver{
		catalog:     catalog,
		defaultLang: normalizeLang(defaultLang),
		log:         log,
		metrics:     nopMetrics{},
		cache:       make(map[conceptKey]Resolution),
	}
}

// SetMetrics wires cache instrumentation. Call before serving; the setter is
// not synchronized against concurrent Resolve calls.
func (r *Resolver) SetMetrics(m Metrics) {
	if m != nil {
		r.metrics = m
	}
}

// Resolve returns display text for (code, system) in lang.
//
// Chain, stopping at the first success:
//
//  1. exact (code, system) catalog match, language-preferring
//  2. code-only catalog match, ignoring system (degraded)
//  3. a synthesized "<SystemName> Code <code>" label (guaranteed non-empty)
//
// An explicit display attribute on the source entry is cheaper than any of
// these and is preferred by callers before they reach the resolver at all.
// Resolve returns an empty display only for an empty code.
func (r *Resolver) Resolve(ctx context.Context, code, system, lang string) Resolution {
	if code == "" {
		return Resolution{}
	}
	if lang == "" {
		lang = r.defaultLang
	}
	key := conceptKey{code, system, normalizeLang(lang)}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		r.metrics.CacheHit()
		return cached
	}
	r.metrics.CacheMiss()

	res := r.lookup(ctx, code, system, lang)

	// Concurrent resolutions of one key may race here; all writers compute
	// the same value from the same immutable catalog, so last write wins.
	r.mu.Lock()
	r.cache[key] = res
	r.mu.Unlock()

	return res
}

// Display is a convenience wrapper returning just the display text.
func (r *Resolver) Display(ctx context.Context, code, system, lang string) string {
	return r.Resolve(ctx, code, system, lang).Display
}

// DisplayOr prefers an explicit display carried by the source entry and only
// consults the resolution chain when it is absent or blank.
func (r *Resolver) DisplayOr(ctx context.Context, explicit, code, system, lang string) string {
	if explicit != "" {
		return explicit
	}
	return r.Display(ctx, code, system, lang)
}

func (r *Resolver) lookup(ctx context.Context, code, system, lang string) Resolution {
	if concept, err := r.catalog.Lookup(ctx, code, system, lang); err == nil {
		return Resolution{Display: concept.Display, Confidence: ConfidenceExact}
	} else if !errors.Is(err, ErrNotFound) {
		r.log.Warn().Err(err).Str("code", code).Str("system", system).
			Msg("catalog lookup failed, degrading")
	}

	if concept, err := r.catalog.LookupCode(ctx, code, lang); err == nil {
		return Resolution{Display: concept.Display, Confidence: ConfidenceDegraded}
	} else if !errors.Is(err, ErrNotFound) {
		r.log.Warn().Err(err).Str("code", code).
			Msg("code-only catalog lookup failed, degrading")
	}

	label := fmt.Sprintf("Code %s", code)
	if name := SystemName(system); name != "" {
		label = fmt.Sprintf("%s %s", name, label)
	}
	return Resolution{Display: label, Confidence: ConfidenceFallback}
}

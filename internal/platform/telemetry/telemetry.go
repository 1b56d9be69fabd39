// Package telemetry counts extraction activity and exposes it in Prometheus
// text format using only standard library constructs.
package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
)

// counterStore holds named counters, optionally keyed by one label value.
type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newCounterStore() *counterStore {
	return &counterStore{items: make(map[string]*int64)}
}

func (s *counterStore) inc(key string) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		atomic.AddInt64(p, 1)
		return
	}

	s.mu.Lock()
	p, ok = s.items[key]
	if !ok {
		p = new(int64)
		s.items[key] = p
	}
	s.mu.Unlock()
	atomic.AddInt64(p, 1)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[key]
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
	}
	return cp
}

// Provider aggregates the extraction pipeline's counters. It satisfies the
// metrics interfaces of the extract, summary, and terminology packages.
type Provider struct {
	docsParsed   int64
	docsRejected int64
	cacheHits    int64
	cacheMisses  int64

	extracted *counterStore // keyed by topic
	dropped   *counterStore // keyed by topic
}

// NewProvider creates an empty metrics provider.
func NewProvider() *Provider {
	return &Provider{
		extracted: newCounterStore(),
		dropped:   newCounterStore(),
	}
}

// DocumentParsed counts one successfully parsed and extracted document.
func (p *Provider) DocumentParsed() { atomic.AddInt64(&p.docsParsed, 1) }

// DocumentRejected counts one document rejected as malformed.
func (p *Provider) DocumentRejected() { atomic.AddInt64(&p.docsRejected, 1) }

// EntryExtracted counts one section entry mapped into a record.
func (p *Provider) EntryExtracted(topic string) { p.extracted.inc(topic) }

// EntryDropped counts one section entry dropped for missing or malformed
// content.
func (p *Provider) EntryDropped(topic string) { p.dropped.inc(topic) }

// CacheHit counts one terminology cache hit.
func (p *Provider) CacheHit() { atomic.AddInt64(&p.cacheHits, 1) }

// CacheMiss counts one terminology cache miss.
func (p *Provider) CacheMiss() { atomic.AddInt64(&p.cacheMisses, 1) }

// DocumentsParsed returns the parsed-document count.
func (p *Provider) DocumentsParsed() int64 { return atomic.LoadInt64(&p.docsParsed) }

// EntriesExtracted returns the extracted-entry count for a topic.
func (p *Provider) EntriesExtracted(topic string) int64 { return p.extracted.get(topic) }

// EntriesDropped returns the dropped-entry count for a topic.
func (p *Provider) EntriesDropped(topic string) int64 { return p.dropped.get(topic) }

// PrometheusHandler exposes every counter in Prometheus text format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeCounter(&b, "documents_parsed_total",
			"Documents parsed and extracted.", atomic.LoadInt64(&p.docsParsed))
		writeCounter(&b, "documents_rejected_total",
			"Documents rejected as malformed.", atomic.LoadInt64(&p.docsRejected))
		writeCounter(&b, "terminology_cache_hits_total",
			"Terminology resolutions served from cache.", atomic.LoadInt64(&p.cacheHits))
		writeCounter(&b, "terminology_cache_misses_total",
			"Terminology resolutions that consulted the catalog.", atomic.LoadInt64(&p.cacheMisses))

		writeTopicCounter(&b, "entries_extracted_total",
			"Section entries mapped into records.", p.extracted.snapshot())
		writeTopicCounter(&b, "entries_dropped_total",
			"Section entries dropped for missing or malformed content.", p.dropped.snapshot())

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeCounter(b *strings.Builder, name, help string, val int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	fmt.Fprintf(b, "%s %d\n", name, val)
}

func writeTopicCounter(b *strings.Builder, name, help string, vals map[string]int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	topics := make([]string, 0, len(vals))
	for topic := range vals {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		fmt.Fprintf(b, "%s{topic=%q} %d\n", name, topic, vals[topic])
	}
}

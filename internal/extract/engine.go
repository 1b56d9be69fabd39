package extract

import (
	"context"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
	"github.com/healthlink/cdabridge/internal/terminology"
)

// statementNames are the clinical-statement elements an entry may wrap.
var statementNames = []string{
	"observation",
	"act",
	"substanceAdministration",
	"procedure",
	"encounter",
	"organizer",
}

// statement is one leaf clinical statement plus the defaults inherited from
// enclosing organizers.
type statement struct {
	el   *etree.Element
	kind string

	// Inherited organizer context, applied when the leaf omits its own.
	status  string
	timeLow string
	// The organizer's own code, relevant for panel-shaped topics.
	organizerCode Coded
}

// Metrics is the subset of the telemetry surface the extraction engine
// reports to.
type Metrics interface {
	EntryExtracted(topic string)
	EntryDropped(topic string)
}

type nopMetrics struct{}

func (nopMetrics) EntryExtracted(string) {}
func (nopMetrics) EntryDropped(string)   {}

// Extractor runs domain extraction over parsed documents. It is safe for
// concurrent use; per-document state lives on the stack.
type Extractor struct {
	res     *terminology.Resolver
	log     zerolog.Logger
	metrics Metrics
	lang    string
}

// New creates an Extractor. lang is the target language for terminology
// resolution. metrics may be nil.
func New(res *terminology.Resolver, lang string, log zerolog.Logger, metrics Metrics) *Extractor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Extractor{res: res, log: log, metrics: metrics, lang: lang}
}

// section locates the topic's section, or nil for the zero-records case.
func (x *Extractor) section(doc *cdax.Document, topic sections.Topic) *sections.Section {
	return sections.Locate(doc, topic)
}

// statements flattens a section's entries into leaf clinical statements,
// recursing organizers and propagating organizer-level status and time onto
// components that omit their own.
func statements(sec *sections.Section, recurseOrganizers bool) []statement {
	var out []statement
	for _, entry := range sec.Entries() {
		for _, child := range entry.ChildElements() {
			out = appendStatements(out, child, statement{}, recurseOrganizers)
		}
	}
	return out
}

func appendStatements(out []statement, el *etree.Element, inherited statement, recurse bool) []statement {
	kind := ""
	for _, name := range statementNames {
		if el.Tag == name {
			kind = name
			break
		}
	}
	if kind == "" {
		return out
	}

	if kind == "organizer" && recurse {
		next := inherited
		if status := statusOf(el); status != "" {
			next.status = status
		}
		if low, _ := timeBounds(el); low != "" {
			next.timeLow = low
		}
		if code := readCode(el); !code.Empty() {
			next.organizerCode = code
		}
		for _, comp := range cdax.FindAll(el, "component") {
			for _, nested := range comp.ChildElements() {
				out = appendStatements(out, nested, next, recurse)
			}
		}
		return out
	}

	s := inherited
	s.el = el
	s.kind = kind
	return append(out, s)
}

// run maps each statement of a topic's section through mapFn with per-entry
// failure isolation: a panic inside one entry is logged with the topic and
// entry index and that entry is skipped, leaving siblings intact.
func run[T any](ctx context.Context, x *Extractor, doc *cdax.Document, topic sections.Topic, recurseOrganizers bool, mapFn func(ctx context.Context, s statement) (T, bool)) []T {
	sec := x.section(doc, topic)
	if sec == nil {
		return nil
	}

	stmts := statements(sec, recurseOrganizers)
	out := make([]T, 0, len(stmts))
	for i, s := range stmts {
		record, ok := mapOne(ctx, x, topic, i, s, mapFn)
		if !ok {
			x.metrics.EntryDropped(string(topic))
			continue
		}
		x.metrics.EntryExtracted(string(topic))
		out = append(out, record)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapOne[T any](ctx context.Context, x *Extractor, topic sections.Topic, index int, s statement, mapFn func(ctx context.Context, s statement) (T, bool)) (record T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Warn().
				Str("topic", string(topic)).
				Int("entry", index).
				Interface("cause", r).
				Msg("malformed entry skipped")
			ok = false
		}
	}()
	return mapFn(ctx, s)
}

// statusOf reads the statusCode of a clinical statement.
func statusOf(el *etree.Element) string {
	return cdax.Attr(cdax.FindOne(el, "statusCode"), "code")
}

// readCode reads the code child of el, preferring the displayName attribute
// and degrading to nested originalText content.
func readCode(el *etree.Element) Coded {
	codeEl := cdax.FindOne(el, "code")
	if codeEl == nil {
		return Coded{}
	}
	coded := Coded{
		Code:    cdax.Attr(codeEl, "code"),
		System:  cdax.Attr(codeEl, "codeSystem"),
		Display: cdax.Attr(codeEl, "displayName"),
	}
	if coded.Display == "" {
		coded.Display = cdax.Text(cdax.FindOne(codeEl, "originalText"))
	}
	return coded
}

// resolveCoded fills the display of a coded reference through the
// terminology chain, leaving an already-carried display untouched.
func (x *Extractor) resolveCoded(ctx context.Context, c Coded) Coded {
	c.Display = x.res.DisplayOr(ctx, c.Display, c.Code, c.System, x.lang)
	return c
}

// statementStatus picks the statement's own status, falling back to the
// inherited organizer status.
func statementStatus(s statement) string {
	if status := statusOf(s.el); status != "" {
		return status
	}
	return s.status
}

// statementTime picks the statement's own start time, falling back to the
// inherited organizer time.
func statementTime(s statement) (low, high string) {
	low, high = timeBounds(s.el)
	if low == "" {
		low = s.timeLow
	}
	return low, high
}

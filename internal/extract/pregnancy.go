package extract

import (
	"context"
	"sort"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// PregnancyOutcome is one aggregated pregnancy-outcome overview row: all
// outcome entries sharing an outcome code collapse into a single record with
// their count and the dates contributed by the matching outcome-date
// observations.
type PregnancyOutcome struct {
	Outcome string   `json:"outcome,omitempty"`
	Count   int      `json:"count"`
	Dates   []string `json:"dates,omitempty"`
	Code    Coded    `json:"codeRef,omitempty"`
}

// Observation codes that classify a pregnancy statement. Sources emit the
// outcome itself and its date as separate sibling entries; the only link
// between them is the shared coded outcome value.
var (
	outcomeObservationCodes = map[string]struct{}{
		"267013003": {}, // outcome of delivery
		"63893-2":   {}, // outcome of pregnancy
	}
	outcomeDateObservationCodes = map[string]struct{}{
		"118185001": {}, // finding related to pregnancy, date variant
		"11778-8":   {}, // delivery date
	}
)

// PregnancyHistory extracts and aggregates the pregnancy history topic.
//
// The outcome-to-date association matches coded outcome values because the
// documents carry no explicit linking identifier. It is best-effort: when a
// source emits two different pregnancies with the same outcome code, their
// dates pool into one overview row.
func (x *Extractor) PregnancyHistory(ctx context.Context, doc *cdax.Document) []PregnancyOutcome {
	sec := x.section(doc, sections.TopicPregnancyHistory)
	if sec == nil {
		return nil
	}

	type group struct {
		code  Coded
		count int
		dates []string
		first int // earliest statement index, for stable output order
	}
	groups := make(map[string]*group)
	order := make([]string, 0, 4)

	for i, s := range statements(sec, true) {
		if s.kind != "observation" {
			continue
		}
		obsCode := readCode(s.el)
		value := readValue(s.el)
		if value.Kind != ValueCoded || value.Coded.Code == "" {
			x.metrics.EntryDropped(string(sections.TopicPregnancyHistory))
			continue
		}

		g, ok := groups[value.Coded.Code]
		if !ok {
			g = &group{code: value.Coded, first: i}
			groups[value.Coded.Code] = g
			order = append(order, value.Coded.Code)
		}

		switch {
		case member(outcomeDateObservationCodes, obsCode.Code):
			if date := dateOfOutcome(s); date != "" {
				g.dates = append(g.dates, date)
			}
		case member(outcomeObservationCodes, obsCode.Code) || obsCode.Code == "":
			g.count++
			x.metrics.EntryExtracted(string(sections.TopicPregnancyHistory))
		}
	}

	out := make([]PregnancyOutcome, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.count == 0 && len(g.dates) == 0 {
			continue
		}
		sort.Strings(g.dates)
		out = append(out, PregnancyOutcome{
			Outcome: x.res.DisplayOr(ctx, g.code.Display, g.code.Code, g.code.System, x.lang),
			Count:   g.count,
			Dates:   g.dates,
			Code:    g.code,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// dateOfOutcome pulls the date carried by an outcome-date observation: its
// own effectiveTime, falling back to time inherited from an enclosing
// organizer.
func dateOfOutcome(s statement) string {
	if low, _ := timeBounds(s.el); low != "" {
		return low
	}
	return s.timeLow
}

func member(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

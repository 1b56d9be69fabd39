package extract

import (
	"context"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// ProblemRecord is one problem-list condition.
type ProblemRecord struct {
	Problem  string `json:"problem,omitempty"`
	Status   string `json:"status,omitempty"`
	Onset    string `json:"onset,omitempty"`
	Resolved string `json:"resolved,omitempty"`
	Code     Coded  `json:"codeRef,omitempty"`
}

// Problems extracts the problems and diagnoses topic.
func (x *Extractor) Problems(ctx context.Context, doc *cdax.Document) []ProblemRecord {
	return run(ctx, x, doc, sections.TopicProblems, false,
		func(ctx context.Context, s statement) (ProblemRecord, bool) {
			obs := s.el
			if s.kind == "act" {
				obs = firstRelated(s.el, "observation")
				if obs == nil {
					return ProblemRecord{}, false
				}
			}

			record := ProblemRecord{Status: statementStatus(s)}
			record.Onset, record.Resolved = timeBounds(obs)
			if record.Onset == "" && record.Resolved == "" {
				record.Onset, record.Resolved = timeBounds(s.el)
			}

			value := readValue(obs)
			switch value.Kind {
			case ValueCoded:
				record.Code = value.Coded
				record.Problem = x.res.DisplayOr(ctx, value.Coded.Display, value.Coded.Code, value.Coded.System, x.lang)
			case ValueText:
				record.Problem = value.Text
			}
			if record.Problem == "" {
				// Poorly-nested sources put the condition on the
				// observation code itself.
				if code := readCode(obs); !code.Empty() {
					record.Code = code
					record.Problem = x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang)
				}
			}
			if record.Problem == "" {
				record.Problem = cdax.Text(cdax.FindOne(obs, "text"))
			}

			if record.Problem == "" {
				return ProblemRecord{}, false
			}
			return record, true
		})
}

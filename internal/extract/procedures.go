package extract

import (
	"context"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// ProcedureRecord is one performed or planned procedure.
type ProcedureRecord struct {
	Procedure string  `json:"procedure,omitempty"`
	Status    string  `json:"status,omitempty"`
	Date      string  `json:"date,omitempty"`
	Performer *Person `json:"performer,omitempty"`
	Code      Coded   `json:"codeRef,omitempty"`
}

// Procedures extracts the procedures topic.
func (x *Extractor) Procedures(ctx context.Context, doc *cdax.Document) []ProcedureRecord {
	return run(ctx, x, doc, sections.TopicProcedures, false,
		func(ctx context.Context, s statement) (ProcedureRecord, bool) {
			record := ProcedureRecord{Status: statementStatus(s)}
			record.Date, _ = statementTime(s)

			code := readCode(s.el)
			if code.Empty() {
				// Observation-shaped procedure entries carry the
				// procedure as their value.
				if v := readValue(s.el); v.Kind == ValueCoded {
					code = v.Coded
				}
			}
			if code.Empty() {
				return ProcedureRecord{}, false
			}
			record.Code = code
			record.Procedure = x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang)

			if performerEl := cdax.FindOne(s.el, "performer", "assignedEntity"); performerEl != nil {
				person, org := readAssignedEntity(performerEl)
				if person != nil {
					record.Performer = person
				} else if org != nil {
					record.Performer = &Person{Name: org.Name, Organization: org}
				}
			}
			return record, true
		})
}

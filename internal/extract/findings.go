package extract

import (
	"context"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// FindingRecord is one physical finding, typically a vital-sign quantity
// observation inside a findings organizer.
type FindingRecord struct {
	Finding string  `json:"finding,omitempty"`
	Value   string  `json:"value,omitempty"`
	Date    string  `json:"date,omitempty"`
	Author  *Person `json:"author,omitempty"`
	Code    Coded   `json:"codeRef,omitempty"`
}

// PhysicalFindings extracts the physical findings topic. Organizer-level
// effective times apply to component observations that omit their own.
func (x *Extractor) PhysicalFindings(ctx context.Context, doc *cdax.Document) []FindingRecord {
	return run(ctx, x, doc, sections.TopicPhysicalFindings, true,
		func(ctx context.Context, s statement) (FindingRecord, bool) {
			if s.kind != "observation" {
				return FindingRecord{}, false
			}

			record := FindingRecord{}
			record.Date, _ = statementTime(s)

			code := readCode(s.el)
			if code.Empty() {
				return FindingRecord{}, false
			}
			record.Code = code
			record.Finding = x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang)

			v := readValue(s.el)
			if v.IsZero() {
				return FindingRecord{}, false
			}
			record.Value = formatValue(ctx, x.res, v, x.lang)

			if authorEl := cdax.FindOne(s.el, "author", "assignedAuthor"); authorEl != nil {
				person, org := readAssignedEntity(authorEl)
				if person != nil {
					record.Author = person
				} else if org != nil {
					record.Author = &Person{Name: org.Name, Organization: org}
				}
			}
			return record, true
		})
}

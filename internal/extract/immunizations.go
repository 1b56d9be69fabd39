package extract

import (
	"context"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// ImmunizationRecord is one administered vaccination.
type ImmunizationRecord struct {
	Vaccine   string  `json:"vaccine,omitempty"`
	Status    string  `json:"status,omitempty"`
	Date      string  `json:"date,omitempty"`
	Dose      string  `json:"dose,omitempty"`
	Performer *Person `json:"performer,omitempty"`
	Code      Coded   `json:"codeRef,omitempty"`
}

// Immunizations extracts the immunizations topic.
func (x *Extractor) Immunizations(ctx context.Context, doc *cdax.Document) []ImmunizationRecord {
	return run(ctx, x, doc, sections.TopicImmunizations, false,
		func(ctx context.Context, s statement) (ImmunizationRecord, bool) {
			if s.kind != "substanceAdministration" {
				return ImmunizationRecord{}, false
			}

			record := ImmunizationRecord{Status: statementStatus(s)}
			record.Date, _ = statementTime(s)

			material := cdax.FindOne(s.el, "consumable", "manufacturedProduct", "manufacturedMaterial")
			if material == nil {
				return ImmunizationRecord{}, false
			}
			code := readCode(material)
			if code.Empty() {
				code.Display = cdax.Text(cdax.FindOne(material, "name"))
			}
			if code.Empty() {
				return ImmunizationRecord{}, false
			}
			record.Code = code
			record.Vaccine = x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang)

			if doseEl := cdax.FindOne(s.el, "doseQuantity"); doseEl != nil {
				dose := Value{Kind: ValueQuantity, Quantity: cdax.Attr(doseEl, "value"), Unit: cdax.Attr(doseEl, "unit")}
				if dose.Quantity != "" {
					record.Dose = formatValue(ctx, x.res, dose, x.lang)
				}
			}

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

package extract

import (
	"context"
	"strings"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// MedicationRecord is one medication statement.
type MedicationRecord struct {
	Name             string `json:"name,omitempty"`
	ActiveIngredient string `json:"activeIngredient,omitempty"`
	Brand            string `json:"brand,omitempty"`
	Route            string `json:"route,omitempty"`
	Dose             string `json:"dose,omitempty"`
	Status           string `json:"status,omitempty"`
	Start            string `json:"start,omitempty"`
	Stop             string `json:"stop,omitempty"`
	Code             Coded  `json:"codeRef,omitempty"`
	RouteCode        Coded  `json:"routeCodeRef,omitempty"`
}

// Medications extracts the medication summary topic.
func (x *Extractor) Medications(ctx context.Context, doc *cdax.Document) []MedicationRecord {
	return run(ctx, x, doc, sections.TopicMedications, false,
		func(ctx context.Context, s statement) (MedicationRecord, bool) {
			if s.kind != "substanceAdministration" {
				return MedicationRecord{}, false
			}

			record := MedicationRecord{Status: statementStatus(s)}
			record.Start, record.Stop = statementTime(s)

			material := cdax.FindOne(s.el, "consumable", "manufacturedProduct", "manufacturedMaterial")
			if material == nil {
				return MedicationRecord{}, false
			}

			code := readCode(material)
			brand := cdax.Text(cdax.FindOne(material, "name"))
			record.Brand = brand
			if code.Empty() && brand == "" {
				return MedicationRecord{}, false
			}
			record.Code = code
			record.Name = x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang)
			if record.Name == "" || code.Empty() {
				record.Name = brand
			}

			// Structured active ingredient when the pharmacy extension is
			// present, otherwise the heuristic strips dose, form, and route
			// tokens out of the compound product name.
			if ingredient := cdax.FindOne(material, "ingredient", "ingredientSubstance"); ingredient != nil {
				ingCode := readCode(ingredient)
				record.ActiveIngredient = x.res.DisplayOr(ctx, ingCode.Display, ingCode.Code, ingCode.System, x.lang)
				if record.ActiveIngredient == "" {
					record.ActiveIngredient = cdax.Text(cdax.FindOne(ingredient, "name"))
				}
			}
			if record.ActiveIngredient == "" {
				record.ActiveIngredient = activeIngredientFromName(record.Name)
			}

			if routeEl := cdax.FindOne(s.el, "routeCode"); routeEl != nil {
				route := Coded{
					Code:    cdax.Attr(routeEl, "code"),
					System:  cdax.Attr(routeEl, "codeSystem"),
					Display: cdax.Attr(routeEl, "displayName"),
				}
				if !route.Empty() {
					record.RouteCode = route
					record.Route = x.res.DisplayOr(ctx, route.Display, route.Code, route.System, x.lang)
				}
			}

			if doseEl := cdax.FindOne(s.el, "doseQuantity"); doseEl != nil {
				quantity := cdax.Attr(doseEl, "value")
				if quantity == "" {
					if lowEl := cdax.FindOne(doseEl, "low"); lowEl != nil {
						quantity = cdax.Attr(lowEl, "value")
					}
				}
				if quantity != "" {
					record.Dose = formatValue(ctx, x.res,
						Value{Kind: ValueQuantity, Quantity: quantity, Unit: cdax.Attr(doseEl, "unit")}, x.lang)
				}
			}

			return record, true
		})
}

// doseFormTokens are dosage, form, and route words stripped from compound
// product names when no structured ingredient field is present.
var doseFormTokens = map[string]struct{}{
	"mg": {}, "mcg": {}, "g": {}, "ml": {}, "iu": {}, "ie": {}, "%": {},
	"tablet": {}, "tablets": {}, "tabl": {}, "tab": {}, "capsule": {}, "capsules": {}, "caps": {},
	"solution": {}, "suspension": {}, "syrup": {}, "cream": {}, "ointment": {}, "gel": {},
	"injection": {}, "injectable": {}, "infusion": {}, "drops": {}, "spray": {}, "patch": {},
	"oral": {}, "im": {}, "iv": {}, "sc": {}, "topical": {}, "inhalation": {}, "rectal": {},
	"film-coated": {}, "coated": {}, "retard": {}, "depot": {}, "forte": {},
}

// activeIngredientFromName strips dosage, form, and route tokens from a
// compound name: "Metoprolol 50 mg tablet" reduces to "Metoprolol". Tokens
// with digits are treated as strengths. Returns "" when nothing survives or
// the whole name survives (no dosage content to strip).
func activeIngredientFromName(name string) string {
	if name == "" {
		return ""
	}
	fields := strings.Fields(name)
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.ToLower(strings.Trim(field, ",.()[]"))
		if token == "" {
			continue
		}
		if _, drop := doseFormTokens[token]; drop {
			continue
		}
		if strings.ContainsAny(token, "0123456789") {
			continue
		}
		kept = append(kept, field)
	}
	if len(kept) == 0 || len(kept) == len(fields) {
		return ""
	}
	return strings.Join(kept, " ")
}

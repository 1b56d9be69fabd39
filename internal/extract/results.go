package extract

import (
	"context"

	"github.com/beevik/etree"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// BloodGroupRecord is the blood-typing result shape.
type BloodGroupRecord struct {
	BloodGroup string `json:"bloodGroup,omitempty"`
	Date       string `json:"date,omitempty"`
	Code       Coded  `json:"codeRef,omitempty"`
}

// ResultObservation is one test inside a diagnostic panel.
type ResultObservation struct {
	Test      string `json:"test,omitempty"`
	Value     string `json:"value,omitempty"`
	Date      string `json:"date,omitempty"`
	Performer string `json:"performer,omitempty"`
	Code      Coded  `json:"codeRef,omitempty"`
}

// ResultPanel is a general diagnostic panel with its component tests.
type ResultPanel struct {
	Panel        string              `json:"panel,omitempty"`
	Date         string              `json:"date,omitempty"`
	Code         Coded               `json:"codeRef,omitempty"`
	Observations []ResultObservation `json:"observations,omitempty"`
}

// CodedResults splits the coded-results topic into its two record shapes,
// keyed by the organizer's code.
type CodedResults struct {
	BloodGroups []BloodGroupRecord `json:"bloodGroups,omitempty"`
	Panels      []ResultPanel      `json:"panels,omitempty"`
}

// Organizer codes indicating a blood-typing panel rather than a general
// diagnostic one.
var bloodGroupPanelCodes = map[string]struct{}{
	"34530-6":   {}, // ABO and Rh group panel
	"883-9":     {}, // ABO group
	"365636006": {}, // blood group finding
}

// CodedResults extracts the coded diagnostic and blood-group results topic.
// Organizers whose code marks a blood-typing panel produce BloodGroupRecord
// rows; every other organizer becomes a ResultPanel.
func (x *Extractor) CodedResults(ctx context.Context, doc *cdax.Document) *CodedResults {
	sec := x.section(doc, sections.TopicCodedResults)
	if sec == nil {
		return nil
	}
	topic := string(sections.TopicCodedResults)

	out := &CodedResults{}
	for _, entry := range sec.Entries() {
		for _, child := range entry.ChildElements() {
			switch child.Tag {
			case "organizer":
				x.codedResultOrganizer(ctx, child, out)
			case "observation":
				// A bare observation entry reads as a single-test panel.
				if obs, ok := x.resultObservation(ctx, child, ""); ok {
					out.Panels = append(out.Panels, ResultPanel{
						Panel:        obs.Test,
						Date:         obs.Date,
						Code:         obs.Code,
						Observations: []ResultObservation{obs},
					})
					x.metrics.EntryExtracted(topic)
				} else {
					x.metrics.EntryDropped(topic)
				}
			}
		}
	}
	if len(out.BloodGroups) == 0 && len(out.Panels) == 0 {
		return nil
	}
	return out
}

func (x *Extractor) codedResultOrganizer(ctx context.Context, organizer *etree.Element, out *CodedResults) {
	topic := string(sections.TopicCodedResults)
	orgCode := readCode(organizer)
	orgDate, _ := timeBounds(organizer)

	if member(bloodGroupPanelCodes, orgCode.Code) {
		for _, comp := range cdax.FindAll(organizer, "component") {
			obsEl := cdax.FindOne(comp, "observation")
			if obsEl == nil {
				continue
			}
			v := readValue(obsEl)
			if v.IsZero() {
				x.metrics.EntryDropped(topic)
				continue
			}
			record := BloodGroupRecord{
				BloodGroup: formatValue(ctx, x.res, v, x.lang),
				Date:       orgDate,
			}
			if date, _ := timeBounds(obsEl); date != "" {
				record.Date = date
			}
			if v.Kind == ValueCoded {
				record.Code = v.Coded
			}
			out.BloodGroups = append(out.BloodGroups, record)
			x.metrics.EntryExtracted(topic)
		}
		return
	}

	panel := ResultPanel{Date: orgDate, Code: orgCode}
	panel.Panel = x.res.DisplayOr(ctx, orgCode.Display, orgCode.Code, orgCode.System, x.lang)
	for _, comp := range cdax.FindAll(organizer, "component") {
		obsEl := cdax.FindOne(comp, "observation")
		if obsEl == nil {
			continue
		}
		if obs, ok := x.resultObservation(ctx, obsEl, orgDate); ok {
			panel.Observations = append(panel.Observations, obs)
			x.metrics.EntryExtracted(topic)
		} else {
			x.metrics.EntryDropped(topic)
		}
	}
	if len(panel.Observations) > 0 {
		out.Panels = append(out.Panels, panel)
	}
}

func (x *Extractor) resultObservation(ctx context.Context, obsEl *etree.Element, defaultDate string) (ResultObservation, bool) {
	code := readCode(obsEl)
	v := readValue(obsEl)
	if code.Empty() && v.IsZero() {
		return ResultObservation{}, false
	}

	obs := ResultObservation{
		Code:  code,
		Test:  x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang),
		Value: formatValue(ctx, x.res, v, x.lang),
		Date:  defaultDate,
	}
	if date, _ := timeBounds(obsEl); date != "" {
		obs.Date = date
	}
	if performerEl := cdax.FindOne(obsEl, "performer", "assignedEntity"); performerEl != nil {
		if person, org := readAssignedEntity(performerEl); person != nil {
			obs.Performer = person.Name
		} else if org != nil {
			obs.Performer = org.Name
		}
	}
	return obs, true
}

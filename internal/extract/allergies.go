package extract

import (
	"context"

	"github.com/beevik/etree"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// AllergyRecord is one allergy or intolerance fact.
type AllergyRecord struct {
	Description string `json:"description,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Reaction    string `json:"reaction,omitempty"`
	Status      string `json:"status,omitempty"`
	Onset       string `json:"onset,omitempty"`
	Code        Coded  `json:"codeRef,omitempty"`
	AgentCode   Coded  `json:"agentCodeRef,omitempty"`
}

// Allergies extracts the allergies and intolerances topic.
func (x *Extractor) Allergies(ctx context.Context, doc *cdax.Document) []AllergyRecord {
	return run(ctx, x, doc, sections.TopicAllergies, false,
		func(ctx context.Context, s statement) (AllergyRecord, bool) {
			// The concern act wraps the allergy observation; a bare
			// observation entry is taken as-is.
			obs := s.el
			if s.kind == "act" {
				obs = firstRelated(s.el, "observation")
				if obs == nil {
					return AllergyRecord{}, false
				}
			}

			record := AllergyRecord{Status: statementStatus(s)}
			if record.Status == "" {
				record.Status = statusOf(obs)
			}
			record.Onset, _ = timeBounds(obs)
			if record.Onset == "" {
				record.Onset, _ = timeBounds(s.el)
			}

			value := readValue(obs)
			if value.Kind == ValueCoded {
				record.Code = value.Coded
				record.Description = x.res.DisplayOr(ctx, value.Coded.Display, value.Coded.Code, value.Coded.System, x.lang)
			}

			// The causative agent rides on the participant's playing
			// entity, coded or name-only.
			if playing := cdax.FindOne(obs, "participant", "participantRole", "playingEntity"); playing != nil {
				agentCode := readCode(playing)
				if !agentCode.Empty() {
					record.AgentCode = agentCode
					record.Agent = x.res.DisplayOr(ctx, agentCode.Display, agentCode.Code, agentCode.System, x.lang)
				}
				if record.Agent == "" {
					record.Agent = cdax.Text(cdax.FindOne(playing, "name"))
				}
			}

			// Reaction manifestation, when present, is a nested
			// observation's coded value.
			if reaction := firstRelated(obs, "observation"); reaction != nil {
				if v := readValue(reaction); v.Kind != "" {
					record.Reaction = formatValue(ctx, x.res, v, x.lang)
				}
			}

			if record.Description == "" && record.Agent == "" {
				return AllergyRecord{}, false
			}
			return record, true
		})
}

// firstRelated returns the first entryRelationship child statement of the
// given local name.
func firstRelated(el *etree.Element, name string) *etree.Element {
	for _, rel := range cdax.FindAll(el, "entryRelationship") {
		if found := cdax.FindOne(rel, name); found != nil {
			return found
		}
	}
	return nil
}

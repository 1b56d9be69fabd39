// Package summary orchestrates a full document run: parse, locate, extract
// every requested topic, and assemble the result envelope.
package summary

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/healthlink/cdabridge/internal/extract"
	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// Metadata is the document-level header information.
type Metadata struct {
	Title         string `json:"title,omitempty"`
	EffectiveTime string `json:"effectiveTime,omitempty"`
	Language      string `json:"language,omitempty"`
	SetID         string `json:"setId,omitempty"`
	Version       string `json:"version,omitempty"`
}

// DocumentSummary is the extraction result envelope. Topic fields are nil
// when the topic was not requested or its section yielded no records.
type DocumentSummary struct {
	Metadata       Metadata                      `json:"metadata"`
	Administrative *extract.AdminBundle          `json:"administrative,omitempty"`
	Allergies      []extract.AllergyRecord       `json:"allergies,omitempty"`
	Medications    []extract.MedicationRecord    `json:"medications,omitempty"`
	Problems       []extract.ProblemRecord       `json:"problems,omitempty"`
	Procedures     []extract.ProcedureRecord     `json:"procedures,omitempty"`
	Immunizations  []extract.ImmunizationRecord  `json:"immunizations,omitempty"`
	Pregnancy      []extract.PregnancyOutcome    `json:"pregnancyHistory,omitempty"`
	SocialHistory  []extract.SocialHistoryRecord `json:"socialHistory,omitempty"`
	Findings       []extract.FindingRecord       `json:"physicalFindings,omitempty"`
	Results        *extract.CodedResults         `json:"codedResults,omitempty"`
}

// Service runs documents through the extraction pipeline.
type Service struct {
	x   *extract.Extractor
	log zerolog.Logger
}

// Metrics is the document-level telemetry surface.
type Metrics interface {
	DocumentParsed()
	DocumentRejected()
}

// NewService creates a summary service around an extractor.
func NewService(x *extract.Extractor, log zerolog.Logger) *Service {
	return &Service{x: x, log: log}
}

// AdminTopic selects the administrative header bundle alongside the section
// topics of the sections package.
const AdminTopic = "administrative"

// AllTopics returns every topic Extract accepts, administrative included.
func AllTopics() []string {
	out := []string{AdminTopic}
	for _, t := range sections.Topics() {
		out = append(out, string(t))
	}
	return out
}

// Extract parses raw and extracts the requested topics. An empty topic list
// means every topic. The only error condition is an unparsable document;
// topics whose sections are missing or empty simply stay nil.
func (s *Service) Extract(ctx context.Context, raw []byte, topics []string) (*DocumentSummary, error) {
	doc, err := cdax.Parse(raw)
	if err != nil {
		return nil, err
	}

	want := map[string]bool{}
	for _, t := range topics {
		want[t] = true
	}
	all := len(want) == 0

	out := &DocumentSummary{Metadata: readMetadata(doc)}

	if all || want[AdminTopic] {
		bundle := s.x.Administrative(ctx, doc)
		out.Administrative = &bundle
	}
	if all || want[string(sections.TopicAllergies)] {
		out.Allergies = s.x.Allergies(ctx, doc)
	}
	if all || want[string(sections.TopicMedications)] {
		out.Medications = s.x.Medications(ctx, doc)
	}
	if all || want[string(sections.TopicProblems)] {
		out.Problems = s.x.Problems(ctx, doc)
	}
	if all || want[string(sections.TopicProcedures)] {
		out.Procedures = s.x.Procedures(ctx, doc)
	}
	if all || want[string(sections.TopicImmunizations)] {
		out.Immunizations = s.x.Immunizations(ctx, doc)
	}
	if all || want[string(sections.TopicPregnancyHistory)] {
		out.Pregnancy = s.x.PregnancyHistory(ctx, doc)
	}
	if all || want[string(sections.TopicSocialHistory)] {
		out.SocialHistory = s.x.SocialHistory(ctx, doc)
	}
	if all || want[string(sections.TopicPhysicalFindings)] {
		out.Findings = s.x.PhysicalFindings(ctx, doc)
	}
	if all || want[string(sections.TopicCodedResults)] {
		out.Results = s.x.CodedResults(ctx, doc)
	}

	return out, nil
}

func readMetadata(doc *cdax.Document) Metadata {
	md := Metadata{
		Title:    cdax.Text(doc.FindOne("title")),
		Language: cdax.Attr(doc.FindOne("languageCode"), "code"),
		Version:  cdax.Attr(doc.FindOne("versionNumber"), "value"),
	}
	if timeEl := doc.FindOne("effectiveTime"); timeEl != nil {
		md.EffectiveTime = cdax.Attr(timeEl, "value")
	}
	if setEl := doc.FindOne("setId"); setEl != nil {
		md.SetID = cdax.Attr(setEl, "root")
		if ext := cdax.Attr(setEl, "extension"); ext != "" {
			if md.SetID != "" {
				md.SetID += "^" + ext
			} else {
				md.SetID = ext
			}
		}
	}
	return md
}

// Package sections locates topic-scoped sections inside a CDA document.
//
// Every connected source encodes the same clinical topic with one of several
// equivalent section codes, and a few omit the code entirely. Each topic
// therefore carries both the set of codes accepted for it and a set of title
// keywords used as a last-resort match.
package sections

// Topic identifies a clinical or administrative section topic.
type Topic string

const (
	TopicAllergies        Topic = "allergies"
	TopicMedications      Topic = "medications"
	TopicProblems         Topic = "problems"
	TopicProcedures       Topic = "procedures"
	TopicImmunizations    Topic = "immunizations"
	TopicPregnancyHistory Topic = "pregnancy_history"
	TopicSocialHistory    Topic = "social_history"
	TopicPhysicalFindings Topic = "physical_findings"
	TopicCodedResults     Topic = "coded_results"
)

// SectionCode is one acceptable (coding system, code) pair for a topic.
type SectionCode struct {
	System string
	Code   string
}

// Definition describes how a topic's section is recognized: first by any of
// its accepted codes, then by case-insensitive substring match of its title
// keywords.
type Definition struct {
	Topic         Topic
	Codes         []SectionCode
	TitleKeywords []string
}

// LOINC is the coding system carried by section codes in well-authored
// documents.
const LOINC = "2.16.840.1.113883.6.1"

// definitions registers every known topic. Code sets include the variants
// observed across source systems, not just the preferred code.
var definitions = map[Topic]Definition{
	TopicAllergies: {
		Topic: TopicAllergies,
		Codes: []SectionCode{
			{LOINC, "48765-2"},
			{LOINC, "10155-0"},
		},
		TitleKeywords: []string{"allerg", "intoleran", "adverse"},
	},
	TopicMedications: {
		Topic: TopicMedications,
		Codes: []SectionCode{
			{LOINC, "10160-0"},
			{LOINC, "57828-6"},
		},
		TitleKeywords: []string{"medication", "medicine", "drug"},
	},
	TopicProblems: {
		Topic: TopicProblems,
		Codes: []SectionCode{
			{LOINC, "11450-4"},
			{LOINC, "11348-0"},
		},
		TitleKeywords: []string{"problem", "diagnos", "condition"},
	},
	TopicProcedures: {
		Topic: TopicProcedures,
		Codes: []SectionCode{
			{LOINC, "47519-4"},
			{LOINC, "29554-3"},
		},
		TitleKeywords: []string{"procedure", "surger", "operation"},
	},
	TopicImmunizations: {
		Topic: TopicImmunizations,
		Codes: []SectionCode{
			{LOINC, "11369-6"},
			{LOINC, "10157-6"},
		},
		TitleKeywords: []string{"immuni", "vaccin"},
	},
	TopicPregnancyHistory: {
		Topic: TopicPregnancyHistory,
		Codes: []SectionCode{
			{LOINC, "10162-6"},
		},
		TitleKeywords: []string{"pregnan", "obstetric", "maternal"},
	},
	TopicSocialHistory: {
		Topic: TopicSocialHistory,
		Codes: []SectionCode{
			{LOINC, "29762-2"},
		},
		TitleKeywords: []string{"social", "lifestyle", "tobacco", "alcohol"},
	},
	TopicPhysicalFindings: {
		Topic: TopicPhysicalFindings,
		Codes: []SectionCode{
			{LOINC, "8716-3"},
			{LOINC, "29545-1"},
		},
		TitleKeywords: []string{"physical", "vital", "findings"},
	},
	TopicCodedResults: {
		Topic: TopicCodedResults,
		Codes: []SectionCode{
			{LOINC, "30954-2"},
			{LOINC, "18725-2"},
		},
		TitleKeywords: []string{"result", "diagnostic test", "blood group", "laborator"},
	},
}

// Define returns the registered definition for topic. The second return is
// false for topics this build does not know about.
func Define(topic Topic) (Definition, bool) {
	def, ok := definitions[topic]
	return def, ok
}

// topicOrder fixes the listing order for Topics and downstream surfaces.
var topicOrder = []Topic{
	TopicAllergies,
	TopicMedications,
	TopicProblems,
	TopicProcedures,
	TopicImmunizations,
	TopicPregnancyHistory,
	TopicSocialHistory,
	TopicPhysicalFindings,
	TopicCodedResults,
}

// Topics returns every registered topic in a stable order.
func Topics() []Topic {
	out := make([]Topic, 0, len(topicOrder))
	out = append(out, topicOrder...)
	return out
}

package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healthlink/cdabridge/internal/extract"
	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/terminology"
)

const sampleDocument = `<?xml version="1.0"?>
<ClinicalDocument xmlns="urn:hl7-org:v3">
  <title>Discharge Summary</title>
  <effectiveTime value="20240301"/>
  <languageCode code="en-GB"/>
  <setId root="2.16.840.1.999" extension="doc-7"/>
  <versionNumber value="2"/>
  <recordTarget>
    <patientRole>
      <id root="1.2.3" extension="p-1"/>
      <patient>
        <name><given>Jane</given><family>Doe</family></name>
        <birthTime value="19900101"/>
      </patient>
    </patientRole>
  </recordTarget>
  <component>
    <structuredBody>
      <component>
        <section>
          <code code="11450-4" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Problem List</title>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <statusCode code="active"/>
              <value xsi:type="CD" code="73211009" codeSystem="2.16.840.1.113883.6.96" displayName="Diabetes mellitus"/>
            </observation>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="29762-2" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Social History</title>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="160573003" codeSystem="2.16.840.1.113883.6.96" displayName="Alcohol intake"/>
              <value xsi:type="CD" code="105542008" codeSystem="2.16.840.1.113883.6.96" displayName="Non-drinker"/>
            </observation>
          </entry>
        </section>
      </component>
    </structuredBody>
  </component>
</ClinicalDocument>`

func testService() *Service {
	res := terminology.NewResolver(terminology.NewMemoryCatalog(), "en", zerolog.Nop())
	x := extract.New(res, "en", zerolog.Nop(), nil)
	return NewService(x, zerolog.Nop())
}

func TestService_Extract_AllTopics(t *testing.T) {
	svc := testService()
	result, err := svc.Extract(context.Background(), []byte(sampleDocument), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Metadata.Title != "Discharge Summary" {
		t.Errorf("title = %q", result.Metadata.Title)
	}
	if result.Metadata.Language != "en-GB" {
		t.Errorf("language = %q", result.Metadata.Language)
	}
	if result.Metadata.SetID != "2.16.840.1.999^doc-7" {
		t.Errorf("setId = %q", result.Metadata.SetID)
	}
	if result.Metadata.Version != "2" {
		t.Errorf("version = %q", result.Metadata.Version)
	}

	if result.Administrative == nil || result.Administrative.Patient.Person == nil {
		t.Fatal("expected administrative bundle with patient")
	}
	if result.Administrative.Patient.Person.Name != "Jane Doe" {
		t.Errorf("patient = %q", result.Administrative.Patient.Person.Name)
	}

	if len(result.Problems) != 1 || result.Problems[0].Problem != "Diabetes mellitus" {
		t.Errorf("problems = %+v", result.Problems)
	}
	if len(result.SocialHistory) != 1 || result.SocialHistory[0].Value != "Non-drinker" {
		t.Errorf("social history = %+v", result.SocialHistory)
	}

	// Topics with no section stay nil rather than empty.
	if result.Allergies != nil {
		t.Errorf("allergies = %+v, want nil", result.Allergies)
	}
	if result.Results != nil {
		t.Errorf("results = %+v, want nil", result.Results)
	}
}

func TestService_Extract_TopicSubset(t *testing.T) {
	svc := testService()
	result, err := svc.Extract(context.Background(), []byte(sampleDocument), []string{"problems"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Problems) != 1 {
		t.Errorf("problems = %+v", result.Problems)
	}
	if result.Administrative != nil {
		t.Error("administrative bundle extracted without being requested")
	}
	if result.SocialHistory != nil {
		t.Error("social history extracted without being requested")
	}
	// Metadata always rides along.
	if result.Metadata.Title != "Discharge Summary" {
		t.Errorf("title = %q", result.Metadata.Title)
	}
}

func TestService_Extract_MalformedDocument(t *testing.T) {
	svc := testService()
	for name, input := range map[string][]byte{
		"empty":       nil,
		"not xml":     []byte("this is not a document"),
		"broken tags": []byte("<ClinicalDocument><component></ClinicalDocument>"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Extract(context.Background(), input, nil)
			if !errors.Is(err, cdax.ErrMalformedDocument) {
				t.Errorf("err = %v, want ErrMalformedDocument", err)
			}
		})
	}
}

func TestAllTopics_StableAndComplete(t *testing.T) {
	first := AllTopics()
	second := AllTopics()
	if len(first) != 10 {
		t.Fatalf("topics = %v", first)
	}
	if first[0] != AdminTopic {
		t.Errorf("first topic = %q", first[0])
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("topic order unstable: %v vs %v", first, second)
		}
	}
}

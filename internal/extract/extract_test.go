package extract

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/terminology"
)

const fixtureCCD = `<?xml version="1.0"?>
<ClinicalDocument xmlns="urn:hl7-org:v3">
  <title>Patient Summary</title>
  <effectiveTime value="20240105"/>
  <languageCode code="en-GB"/>
  <recordTarget>
    <patientRole>
      <id root="1.2.3.4" extension="pat-42"/>
      <addr use="HP">
        <streetAddressLine>12 Harbour Road</streetAddressLine>
        <city>Valletta</city>
        <postalCode>VLT 1511</postalCode>
        <country>MT</country>
      </addr>
      <telecom use="HP" value="tel:+35621223344"/>
      <patient>
        <name><given>Maria</given><family>Borg</family></name>
        <administrativeGenderCode code="F" codeSystem="2.16.840.1.113883.5.1"/>
        <birthTime value="19850412"/>
        <guardian>
          <telecom value="tel:+35699887766"/>
          <guardianPerson><name><given>Carmen</given><family>Borg</family></name></guardianPerson>
        </guardian>
      </patient>
    </patientRole>
  </recordTarget>
  <author>
    <time value="20240105"/>
    <assignedAuthor>
      <assignedPerson><name><prefix>Dr.</prefix><given>Josef</given><family>Vella</family></name></assignedPerson>
      <representedOrganization><name>Mater Dei Hospital</name></representedOrganization>
    </assignedAuthor>
  </author>
  <custodian>
    <assignedCustodian>
      <representedCustodianOrganization>
        <name>National Health Record</name>
        <addr><city>Valletta</city><country>MT</country></addr>
      </representedCustodianOrganization>
    </assignedCustodian>
  </custodian>
  <legalAuthenticator>
    <time value="20240106"/>
    <assignedEntity>
      <assignedPerson><name><given>Anna</given><family>Grech</family></name></assignedPerson>
    </assignedEntity>
  </legalAuthenticator>
  <participant typeCode="IND">
    <associatedEntity classCode="ECON">
      <telecom value="tel:+35677665544"/>
      <associatedPerson><name><given>Paul</given><family>Borg</family></name></associatedPerson>
    </associatedEntity>
  </participant>
  <component>
    <structuredBody>
      <component>
        <section>
          <code code="48765-2" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Allergies and Intolerances</title>
          <entry>
            <act classCode="ACT" moodCode="EVN">
              <statusCode code="active"/>
              <effectiveTime><low value="2015"/></effectiveTime>
              <entryRelationship typeCode="SUBJ">
                <observation classCode="OBS" moodCode="EVN">
                  <value xsi:type="CD" code="294505008" codeSystem="2.16.840.1.113883.6.96" displayName="Amoxicillin allergy"/>
                  <participant typeCode="CSM">
                    <participantRole>
                      <playingEntity>
                        <code code="372687004" codeSystem="2.16.840.1.113883.6.96" displayName="Amoxicillin"/>
                      </playingEntity>
                    </participantRole>
                  </participant>
                </observation>
              </entryRelationship>
            </act>
          </entry>
          <entry>
            <act classCode="ACT" moodCode="EVN">
              <statusCode code="completed"/>
            </act>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="10160-0" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Medication Summary</title>
          <entry>
            <substanceAdministration classCode="SBADM" moodCode="EVN">
              <statusCode code="active"/>
              <effectiveTime><low value="20230901"/><high value="20240301"/></effectiveTime>
              <routeCode code="20053000" codeSystem="0.4.0.127.0.16.1.1.2.1" displayName="Oral use"/>
              <doseQuantity value="1" unit="tablet"/>
              <consumable>
                <manufacturedProduct>
                  <manufacturedMaterial>
                    <code code="866924" codeSystem="2.16.840.1.113883.6.88" displayName="Metoprolol 50 mg oral tablet"/>
                  </manufacturedMaterial>
                </manufacturedProduct>
              </consumable>
            </substanceAdministration>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="11450-4" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Problem List</title>
          <entry>
            <act classCode="ACT" moodCode="EVN">
              <statusCode code="active"/>
              <entryRelationship typeCode="SUBJ">
                <observation classCode="OBS" moodCode="EVN">
                  <effectiveTime><low value="201906"/></effectiveTime>
                  <value xsi:type="CD" code="38341003" codeSystem="2.16.840.1.113883.6.96"/>
                </observation>
              </entryRelationship>
            </act>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="10162-6" codeSystem="2.16.840.1.113883.6.1"/>
          <title>History of Pregnancies</title>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="267013003" codeSystem="2.16.840.1.113883.6.96"/>
              <value xsi:type="CD" code="281050002" codeSystem="2.16.840.1.113883.6.96" displayName="Livebirth"/>
            </observation>
          </entry>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="267013003" codeSystem="2.16.840.1.113883.6.96"/>
              <value xsi:type="CD" code="281050002" codeSystem="2.16.840.1.113883.6.96" displayName="Livebirth"/>
            </observation>
          </entry>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="267013003" codeSystem="2.16.840.1.113883.6.96"/>
              <value xsi:type="CD" code="281050002" codeSystem="2.16.840.1.113883.6.96" displayName="Livebirth"/>
            </observation>
          </entry>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="11778-8" codeSystem="2.16.840.1.113883.6.1"/>
              <effectiveTime value="20100612"/>
              <value xsi:type="CD" code="281050002" codeSystem="2.16.840.1.113883.6.96"/>
            </observation>
          </entry>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="11778-8" codeSystem="2.16.840.1.113883.6.1"/>
              <effectiveTime value="20140220"/>
              <value xsi:type="CD" code="281050002" codeSystem="2.16.840.1.113883.6.96"/>
            </observation>
          </entry>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="11778-8" codeSystem="2.16.840.1.113883.6.1"/>
              <effectiveTime value="20180907"/>
              <value xsi:type="CD" code="281050002" codeSystem="2.16.840.1.113883.6.96"/>
            </observation>
          </entry>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="267013003" codeSystem="2.16.840.1.113883.6.96"/>
              <value xsi:type="CD" code="17369002" codeSystem="2.16.840.1.113883.6.96" displayName="Miscarriage"/>
            </observation>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="30954-2" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Relevant Diagnostic Tests</title>
          <entry>
            <organizer classCode="CLUSTER" moodCode="EVN">
              <code code="34530-6" codeSystem="2.16.840.1.113883.6.1" displayName="ABO and Rh group panel"/>
              <statusCode code="completed"/>
              <effectiveTime><low value="20230115"/></effectiveTime>
              <component>
                <observation classCode="OBS" moodCode="EVN">
                  <code code="882-1" codeSystem="2.16.840.1.113883.6.1"/>
                  <value xsi:type="CD" code="278149003" codeSystem="2.16.840.1.113883.6.96" displayName="A Rh(D) positive"/>
                </observation>
              </component>
            </organizer>
          </entry>
          <entry>
            <organizer classCode="BATTERY" moodCode="EVN">
              <code code="24323-8" codeSystem="2.16.840.1.113883.6.1" displayName="Comprehensive metabolic panel"/>
              <statusCode code="completed"/>
              <effectiveTime><low value="20231201"/></effectiveTime>
              <component>
                <observation classCode="OBS" moodCode="EVN">
                  <code code="2345-7" codeSystem="2.16.840.1.113883.6.1" displayName="Glucose"/>
                  <value xsi:type="PQ" value="5.4" unit="mmol/L"/>
                </observation>
              </component>
              <component>
                <observation classCode="OBS" moodCode="EVN">
                  <code code="2160-0" codeSystem="2.16.840.1.113883.6.1" displayName="Creatinine"/>
                  <value xsi:type="PQ" value="74" unit="umol/L"/>
                  <effectiveTime value="20231202"/>
                </observation>
              </component>
            </organizer>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="8716-3" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Physical Findings</title>
          <entry>
            <organizer classCode="CLUSTER" moodCode="EVN">
              <statusCode code="completed"/>
              <effectiveTime><low value="20240104"/></effectiveTime>
              <component>
                <observation classCode="OBS" moodCode="EVN">
                  <code code="8480-6" codeSystem="2.16.840.1.113883.6.1" displayName="Systolic blood pressure"/>
                  <value xsi:type="PQ" value="128" unit="mm[Hg]"/>
                </observation>
              </component>
              <component>
                <observation classCode="OBS" moodCode="EVN">
                  <code code="8462-4" codeSystem="2.16.840.1.113883.6.1" displayName="Diastolic blood pressure"/>
                  <value xsi:type="PQ" value="82" unit="mm[Hg]"/>
                  <effectiveTime value="20240105"/>
                </observation>
              </component>
            </organizer>
          </entry>
        </section>
      </component>
      <component>
        <section>
          <code code="29762-2" codeSystem="2.16.840.1.113883.6.1"/>
          <title>Social History</title>
          <entry>
            <observation classCode="OBS" moodCode="EVN">
              <code code="229819007" codeSystem="2.16.840.1.113883.6.96" displayName="Tobacco use"/>
              <effectiveTime><low value="2010"/><high value="2019"/></effectiveTime>
              <value xsi:type="CD" code="8517006" codeSystem="2.16.840.1.113883.6.96" displayName="Former smoker"/>
            </observation>
          </entry>
        </section>
      </component>
    </structuredBody>
  </component>
</ClinicalDocument>`

func testExtractor() *Extractor {
	catalog := terminology.NewMemoryCatalog()
	catalog.Add(terminology.Concept{Code: "38341003", System: terminology.SystemSNOMEDCT, Display: "Hypertensive disorder"})
	catalog.Add(terminology.Concept{Code: "F", System: terminology.SystemAdminGender, Display: "Female"})
	res := terminology.NewResolver(catalog, "en", zerolog.Nop())
	return New(res, "en", zerolog.Nop(), nil)
}

func fixtureDoc(t *testing.T) *cdax.Document {
	t.Helper()
	doc, err := cdax.Parse([]byte(fixtureCCD))
	if err != nil {
		t.Fatalf("fixture failed to parse: %v", err)
	}
	return doc
}

func TestAllergies(t *testing.T) {
	x := testExtractor()
	records := x.Allergies(context.Background(), fixtureDoc(t))

	// The second entry has no clinical content and must be dropped.
	if len(records) != 1 {
		t.Fatalf("expected 1 allergy record, got %d", len(records))
	}
	r := records[0]
	if r.Description != "Amoxicillin allergy" {
		t.Errorf("description = %q", r.Description)
	}
	if r.Agent != "Amoxicillin" {
		t.Errorf("agent = %q", r.Agent)
	}
	if r.Status != "active" {
		t.Errorf("status = %q", r.Status)
	}
	if r.Onset != "2015" {
		t.Errorf("onset = %q (partial dates must survive)", r.Onset)
	}
	if r.Code.System != terminology.SystemSNOMEDCT {
		t.Errorf("code must keep its system, got %q", r.Code.System)
	}
}

func TestMedications(t *testing.T) {
	x := testExtractor()
	records := x.Medications(context.Background(), fixtureDoc(t))

	if len(records) != 1 {
		t.Fatalf("expected 1 medication record, got %d", len(records))
	}
	r := records[0]
	if r.Name != "Metoprolol 50 mg oral tablet" {
		t.Errorf("name = %q", r.Name)
	}
	if r.ActiveIngredient != "Metoprolol" {
		t.Errorf("active ingredient heuristic failed, got %q", r.ActiveIngredient)
	}
	if r.Route != "Oral use" {
		t.Errorf("route = %q", r.Route)
	}
	if r.Dose != "1 tablet" {
		t.Errorf("dose = %q", r.Dose)
	}
	if r.Start != "2023-09-01" || r.Stop != "2024-03-01" {
		t.Errorf("period = %q..%q", r.Start, r.Stop)
	}
}

func TestProblems_ResolvesThroughCatalog(t *testing.T) {
	x := testExtractor()
	records := x.Problems(context.Background(), fixtureDoc(t))

	if len(records) != 1 {
		t.Fatalf("expected 1 problem record, got %d", len(records))
	}
	r := records[0]
	// No displayName in the source; the catalog supplies it.
	if r.Problem != "Hypertensive disorder" {
		t.Errorf("problem = %q", r.Problem)
	}
	if r.Onset != "2019-06" {
		t.Errorf("partial onset = %q", r.Onset)
	}
}

func TestPregnancyHistory_Aggregation(t *testing.T) {
	x := testExtractor()
	records := x.PregnancyHistory(context.Background(), fixtureDoc(t))

	if len(records) != 2 {
		t.Fatalf("expected 2 outcome groups, got %d", len(records))
	}

	var livebirth, miscarriage *PregnancyOutcome
	for i := range records {
		switch records[i].Code.Code {
		case "281050002":
			livebirth = &records[i]
		case "17369002":
			miscarriage = &records[i]
		}
	}
	if livebirth == nil || miscarriage == nil {
		t.Fatalf("missing outcome groups: %+v", records)
	}

	if livebirth.Count != 3 {
		t.Errorf("livebirth count = %d, want 3", livebirth.Count)
	}
	wantDates := []string{"2010-06-12", "2014-02-20", "2018-09-07"}
	if len(livebirth.Dates) != 3 {
		t.Fatalf("livebirth dates = %v", livebirth.Dates)
	}
	for i, want := range wantDates {
		if livebirth.Dates[i] != want {
			t.Errorf("dates[%d] = %q, want %q", i, livebirth.Dates[i], want)
		}
	}

	if miscarriage.Count != 1 {
		t.Errorf("miscarriage count = %d, want 1", miscarriage.Count)
	}
	if len(miscarriage.Dates) != 0 {
		t.Errorf("miscarriage dates = %v, want none", miscarriage.Dates)
	}
}

func TestCodedResults_BloodGroupVersusPanel(t *testing.T) {
	x := testExtractor()
	results := x.CodedResults(context.Background(), fixtureDoc(t))
	if results == nil {
		t.Fatal("expected coded results")
	}

	if len(results.BloodGroups) != 1 {
		t.Fatalf("expected 1 blood group record, got %d", len(results.BloodGroups))
	}
	bg := results.BloodGroups[0]
	if bg.BloodGroup != "A Rh(D) positive" {
		t.Errorf("blood group = %q", bg.BloodGroup)
	}
	if bg.Date != "2023-01-15" {
		t.Errorf("blood group date must inherit the organizer time, got %q", bg.Date)
	}

	if len(results.Panels) != 1 {
		t.Fatalf("expected 1 diagnostic panel, got %d", len(results.Panels))
	}
	panel := results.Panels[0]
	if panel.Panel != "Comprehensive metabolic panel" {
		t.Errorf("panel = %q", panel.Panel)
	}
	if len(panel.Observations) != 2 {
		t.Fatalf("expected 2 panel observations, got %d", len(panel.Observations))
	}
	if panel.Observations[0].Value != "5.4 mmol/L" {
		t.Errorf("quantity formatting = %q", panel.Observations[0].Value)
	}
	if panel.Observations[0].Date != "2023-12-01" {
		t.Errorf("observation without own time must inherit panel date, got %q", panel.Observations[0].Date)
	}
	if panel.Observations[1].Date != "2023-12-02" {
		t.Errorf("observation with own time must keep it, got %q", panel.Observations[1].Date)
	}
}

func TestPhysicalFindings_OrganizerTimePropagates(t *testing.T) {
	x := testExtractor()
	records := x.PhysicalFindings(context.Background(), fixtureDoc(t))

	if len(records) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(records))
	}
	if records[0].Date != "2024-01-04" {
		t.Errorf("finding without own time must inherit organizer time, got %q", records[0].Date)
	}
	if records[1].Date != "2024-01-05" {
		t.Errorf("finding with own time must keep it, got %q", records[1].Date)
	}
	if records[0].Value != "128 mm[Hg]" {
		t.Errorf("value = %q", records[0].Value)
	}
}

func TestSocialHistory(t *testing.T) {
	x := testExtractor()
	records := x.SocialHistory(context.Background(), fixtureDoc(t))

	if len(records) != 1 {
		t.Fatalf("expected 1 social history record, got %d", len(records))
	}
	r := records[0]
	if r.Observation != "Tobacco use" {
		t.Errorf("observation = %q", r.Observation)
	}
	if r.Value != "Former smoker" {
		t.Errorf("value = %q", r.Value)
	}
	if r.From != "2010" || r.To != "2019" {
		t.Errorf("period = %q..%q", r.From, r.To)
	}
}

func TestAdministrative(t *testing.T) {
	x := testExtractor()
	bundle := x.Administrative(context.Background(), fixtureDoc(t))

	if bundle.Patient.Person == nil || bundle.Patient.Person.Name != "Maria Borg" {
		t.Errorf("patient = %+v", bundle.Patient.Person)
	}
	if bundle.Patient.BirthDate != "1985-04-12" {
		t.Errorf("birth date = %q", bundle.Patient.BirthDate)
	}
	if bundle.Patient.Gender != "Female" {
		t.Errorf("gender must resolve through the catalog, got %q", bundle.Patient.Gender)
	}
	if len(bundle.Patient.IDs) != 1 || bundle.Patient.IDs[0] != "1.2.3.4^pat-42" {
		t.Errorf("ids = %v", bundle.Patient.IDs)
	}

	if len(bundle.Authors) != 1 {
		t.Fatalf("expected 1 author, got %d", len(bundle.Authors))
	}
	author := bundle.Authors[0]
	if author.Person == nil || author.Person.Name != "Dr. Josef Vella" {
		t.Errorf("author = %+v", author.Person)
	}
	if author.Person.Organization == nil || author.Person.Organization.Name != "Mater Dei Hospital" {
		t.Errorf("author organization missing")
	}

	if bundle.Custodian == nil || bundle.Custodian.Name != "National Health Record" {
		t.Errorf("custodian = %+v", bundle.Custodian)
	}
	if len(bundle.Custodian.Addresses) != 1 || bundle.Custodian.Addresses[0].City != "Valletta" {
		t.Errorf("custodian addresses = %+v", bundle.Custodian.Addresses)
	}

	if bundle.LegalAuthenticator == nil || bundle.LegalAuthenticator.Person.Name != "Anna Grech" {
		t.Errorf("legal authenticator = %+v", bundle.LegalAuthenticator)
	}

	if len(bundle.Contacts) != 2 {
		t.Fatalf("expected guardian and participant contacts, got %d", len(bundle.Contacts))
	}
	if bundle.Contacts[0].Role != "guardian" || bundle.Contacts[0].Person.Name != "Carmen Borg" {
		t.Errorf("guardian = %+v", bundle.Contacts[0])
	}
	if bundle.Contacts[1].Role != "ECON" || bundle.Contacts[1].Person.Name != "Paul Borg" {
		t.Errorf("participant contact = %+v", bundle.Contacts[1])
	}
}

func TestNamespaceInvariance_AcrossExtractors(t *testing.T) {
	x := testExtractor()
	ctx := context.Background()

	base := fixtureDoc(t)

	prefixed := fixtureCCD
	prefixed = strings.Replace(prefixed,
		`<ClinicalDocument xmlns="urn:hl7-org:v3">`,
		`<hl7:ClinicalDocument xmlns:hl7="urn:hl7-org:v3">`, 1)
	prefixed = strings.Replace(prefixed, `</ClinicalDocument>`, `</hl7:ClinicalDocument>`, 1)
	prefixed = strings.ReplaceAll(prefixed, "<", "<hl7:")
	prefixed = strings.ReplaceAll(prefixed, "<hl7:/", "</hl7:")
	prefixed = strings.ReplaceAll(prefixed, "<hl7:?xml", "<?xml")
	prefixed = strings.ReplaceAll(prefixed, "</hl7:hl7:ClinicalDocument>", "</hl7:ClinicalDocument>")
	prefixed = strings.ReplaceAll(prefixed, "<hl7:hl7:ClinicalDocument", "<hl7:ClinicalDocument")

	noNS := strings.Replace(fixtureCCD,
		`<ClinicalDocument xmlns="urn:hl7-org:v3">`,
		`<ClinicalDocument>`, 1)

	for name, src := range map[string]string{"prefixed": prefixed, "no namespace": noNS} {
		t.Run(name, func(t *testing.T) {
			variant, err := cdax.Parse([]byte(src))
			if err != nil {
				t.Fatalf("variant failed to parse: %v", err)
			}

			baseJSON := marshal(t, map[string]any{
				"allergies":   x.Allergies(ctx, base),
				"medications": x.Medications(ctx, base),
				"pregnancy":   x.PregnancyHistory(ctx, base),
				"admin":       x.Administrative(ctx, base),
			})
			variantJSON := marshal(t, map[string]any{
				"allergies":   x.Allergies(ctx, variant),
				"medications": x.Medications(ctx, variant),
				"pregnancy":   x.PregnancyHistory(ctx, variant),
				"admin":       x.Administrative(ctx, variant),
			})
			if baseJSON != variantJSON {
				t.Errorf("extraction differs across namespace styles:\n%s\n---\n%s", baseJSON, variantJSON)
			}
		})
	}
}

func TestIdempotence(t *testing.T) {
	x := testExtractor()
	ctx := context.Background()

	first := marshal(t, map[string]any{
		"allergies": x.Allergies(ctx, fixtureDoc(t)),
		"results":   x.CodedResults(ctx, fixtureDoc(t)),
		"pregnancy": x.PregnancyHistory(ctx, fixtureDoc(t)),
	})
	second := marshal(t, map[string]any{
		"allergies": x.Allergies(ctx, fixtureDoc(t)),
		"results":   x.CodedResults(ctx, fixtureDoc(t)),
		"pregnancy": x.PregnancyHistory(ctx, fixtureDoc(t)),
	})
	if first != second {
		t.Errorf("repeated extraction differs:\n%s\n---\n%s", first, second)
	}
}

func TestMissingSectionsYieldNoRecords(t *testing.T) {
	x := testExtractor()
	ctx := context.Background()
	doc, err := cdax.Parse([]byte(`<?xml version="1.0"?><ClinicalDocument xmlns="urn:hl7-org:v3"><title>Empty</title></ClinicalDocument>`))
	if err != nil {
		t.Fatal(err)
	}

	if got := x.Allergies(ctx, doc); got != nil {
		t.Errorf("allergies = %v", got)
	}
	if got := x.Medications(ctx, doc); got != nil {
		t.Errorf("medications = %v", got)
	}
	if got := x.PregnancyHistory(ctx, doc); got != nil {
		t.Errorf("pregnancy = %v", got)
	}
	if got := x.CodedResults(ctx, doc); got != nil {
		t.Errorf("results = %v", got)
	}
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

package cdax

import (
	"strings"
	"testing"
)

const defaultNSDoc = `<?xml version="1.0"?>
<ClinicalDocument xmlns="urn:hl7-org:v3">
  <title>Patient Summary</title>
  <component>
    <structuredBody>
      <component>
        <section>
          <title>Medications</title>
        </section>
      </component>
      <component>
        <section>
          <title>Allergies</title>
        </section>
      </component>
    </structuredBody>
  </component>
</ClinicalDocument>`

const prefixedNSDoc = `<?xml version="1.0"?>
<hl7:ClinicalDocument xmlns:hl7="urn:hl7-org:v3">
  <hl7:title>Patient Summary</hl7:title>
  <hl7:component>
    <hl7:structuredBody>
      <hl7:component>
        <hl7:section>
          <hl7:title>Medications</hl7:title>
        </hl7:section>
      </hl7:component>
      <hl7:component>
        <hl7:section>
          <hl7:title>Allergies</hl7:title>
        </hl7:section>
      </hl7:component>
    </hl7:structuredBody>
  </hl7:component>
</hl7:ClinicalDocument>`

const noNSDoc = `<?xml version="1.0"?>
<ClinicalDocument>
  <title>Patient Summary</title>
  <component>
    <structuredBody>
      <component>
        <section>
          <title>Medications</title>
        </section>
      </component>
      <component>
        <section>
          <title>Allergies</title>
        </section>
      </component>
    </structuredBody>
  </component>
</ClinicalDocument>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"truncated", "<ClinicalDocument><title>x</title>"},
		{"not xml", "this is not a document"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.in))
			if err == nil {
				t.Fatal("expected error for malformed input")
			}
			if !strings.Contains(err.Error(), "malformed document") {
				t.Errorf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestFindAll_NamespaceInvariance(t *testing.T) {
	docs := map[string]string{
		"default namespace":  defaultNSDoc,
		"prefixed namespace": prefixedNSDoc,
		"no namespace":       noNSDoc,
	}

	for name, src := range docs {
		t.Run(name, func(t *testing.T) {
			doc := mustParse(t, src)

			sections := doc.FindAll("component", "structuredBody", "component", "section")
			if len(sections) != 2 {
				t.Fatalf("expected 2 sections, got %d", len(sections))
			}

			titles := make([]string, 0, 2)
			for _, s := range sections {
				titles = append(titles, Text(FindOne(s, "title")))
			}
			if titles[0] != "Medications" || titles[1] != "Allergies" {
				t.Errorf("unexpected section titles: %v", titles)
			}
		})
	}
}

func TestFindOne_MissingPathIsNil(t *testing.T) {
	doc := mustParse(t, defaultNSDoc)
	if el := doc.FindOne("component", "nonStructuredBody", "section"); el != nil {
		t.Errorf("expected nil for missing path, got %v", el.Tag)
	}
}

func TestFindAll_LocalNameFallback(t *testing.T) {
	// Unrecognized namespace: neither the known-namespace pass nor the
	// no-namespace pass matches, so lookup falls through to the
	// structure-blind local-name scan.
	src := `<?xml version="1.0"?>
<ClinicalDocument xmlns="urn:example:unknown">
  <wrapper>
    <section><title>Buried</title></section>
  </wrapper>
</ClinicalDocument>`
	doc := mustParse(t, src)

	sections := doc.FindAll("component", "structuredBody", "component", "section")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section via local-name scan, got %d", len(sections))
	}
	if got := Text(FindOne(sections[0], "title")); got != "Buried" {
		t.Errorf("expected title 'Buried', got %q", got)
	}
}

func TestFindAll_StrategiesNotMerged(t *testing.T) {
	// The standard-namespace section must win outright; the stray
	// no-namespace section is only reachable when the first strategy
	// yields nothing.
	src := `<?xml version="1.0"?>
<ClinicalDocument xmlns:hl7="urn:hl7-org:v3">
  <hl7:section><hl7:title>Namespaced</hl7:title></hl7:section>
  <section><title>Bare</title></section>
</ClinicalDocument>`
	doc := mustParse(t, src)

	sections := doc.FindAll("section")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if got := Text(FindOne(sections[0], "title")); got != "Namespaced" {
		t.Errorf("expected namespaced section to win, got %q", got)
	}
}

func TestFindAll_DocumentOrderPreserved(t *testing.T) {
	doc := mustParse(t, defaultNSDoc)
	titles := doc.FindAll("component", "structuredBody", "component", "section", "title")
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}
	if Text(titles[0]) != "Medications" {
		t.Errorf("expected document order preserved, first title %q", Text(titles[0]))
	}
}

func TestAttrAndText_NilSafe(t *testing.T) {
	if Attr(nil, "code") != "" {
		t.Error("Attr(nil) should be empty")
	}
	if Text(nil) != "" {
		t.Error("Text(nil) should be empty")
	}
}

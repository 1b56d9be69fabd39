package extract

import (
	"context"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
)

// PatientRecord holds the demographics from the document header.
type PatientRecord struct {
	Person    *Person   `json:"person,omitempty"`
	BirthDate string    `json:"birthDate,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Language  string    `json:"language,omitempty"`
	IDs       []string  `json:"ids,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
	Telecoms  []Telecom `json:"telecoms,omitempty"`
}

// AuthorRecord is one document author or the legal authenticator.
type AuthorRecord struct {
	Time         string        `json:"time,omitempty"`
	Person       *Person       `json:"person,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
}

// ContactRecord is one patient contact (guardian or named participant).
type ContactRecord struct {
	Role         string        `json:"role,omitempty"`
	Person       *Person       `json:"person,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	Addresses    []Address     `json:"addresses,omitempty"`
	Telecoms     []Telecom     `json:"telecoms,omitempty"`
}

// AdminBundle is the administrative-data extraction output.
type AdminBundle struct {
	Patient            PatientRecord  `json:"patient"`
	Authors            []AuthorRecord `json:"authors,omitempty"`
	Custodian          *Organization  `json:"custodian,omitempty"`
	LegalAuthenticator *AuthorRecord  `json:"legalAuthenticator,omitempty"`
	Contacts           []ContactRecord `json:"contacts,omitempty"`
}

// Administrative extracts the header-level administrative bundle: patient
// demographics, authorship, custodianship, legal authentication, and patient
// contacts.
func (x *Extractor) Administrative(ctx context.Context, doc *cdax.Document) AdminBundle {
	bundle := AdminBundle{
		Patient: x.patient(ctx, doc),
	}

	for _, authorEl := range doc.FindAll("author") {
		record := AuthorRecord{
			Time: normalizeDate(cdax.Attr(cdax.FindOne(authorEl, "time"), "value")),
		}
		record.Person, record.Organization = readAssignedEntity(cdax.FindOne(authorEl, "assignedAuthor"))
		if record.Person != nil || record.Organization != nil {
			bundle.Authors = append(bundle.Authors, record)
		}
	}

	bundle.Custodian = readOrganization(doc.FindOne(
		"custodian", "assignedCustodian", "representedCustodianOrganization"))

	if legalEl := doc.FindOne("legalAuthenticator"); legalEl != nil {
		record := AuthorRecord{
			Time: normalizeDate(cdax.Attr(cdax.FindOne(legalEl, "time"), "value")),
		}
		record.Person, record.Organization = readAssignedEntity(cdax.FindOne(legalEl, "assignedEntity"))
		if record.Person != nil || record.Organization != nil {
			bundle.LegalAuthenticator = &record
		}
	}

	bundle.Contacts = x.contacts(ctx, doc)
	return bundle
}

func (x *Extractor) patient(ctx context.Context, doc *cdax.Document) PatientRecord {
	record := PatientRecord{}
	role := doc.FindOne("recordTarget", "patientRole")
	if role == nil {
		return record
	}

	for _, idEl := range cdax.FindAll(role, "id") {
		ext := cdax.Attr(idEl, "extension")
		root := cdax.Attr(idEl, "root")
		switch {
		case ext != "" && root != "":
			record.IDs = append(record.IDs, root+"^"+ext)
		case ext != "":
			record.IDs = append(record.IDs, ext)
		case root != "":
			record.IDs = append(record.IDs, root)
		}
	}
	record.Addresses = readAddresses(role)
	record.Telecoms = readTelecoms(role)

	patientEl := cdax.FindOne(role, "patient")
	if patientEl == nil {
		return record
	}
	record.Person = readPerson(patientEl)
	record.BirthDate = normalizeDate(cdax.Attr(cdax.FindOne(patientEl, "birthTime"), "value"))
	record.Language = cdax.Attr(cdax.FindOne(patientEl, "languageCommunication", "languageCode"), "code")

	if genderEl := cdax.FindOne(patientEl, "administrativeGenderCode"); genderEl != nil {
		record.Gender = x.res.DisplayOr(ctx,
			cdax.Attr(genderEl, "displayName"),
			cdax.Attr(genderEl, "code"),
			cdax.Attr(genderEl, "codeSystem"),
			x.lang)
	}
	return record
}

func (x *Extractor) contacts(ctx context.Context, doc *cdax.Document) []ContactRecord {
	var out []ContactRecord

	// Guardians ride inside the patient element.
	if patientEl := doc.FindOne("recordTarget", "patientRole", "patient"); patientEl != nil {
		for _, guardianEl := range cdax.FindAll(patientEl, "guardian") {
			record := ContactRecord{
				Role:      "guardian",
				Person:    readPerson(cdax.FindOne(guardianEl, "guardianPerson")),
				Addresses: readAddresses(guardianEl),
				Telecoms:  readTelecoms(guardianEl),
			}
			if org := readOrganization(cdax.FindOne(guardianEl, "guardianOrganization")); org != nil {
				record.Organization = org
			}
			if record.Person != nil || record.Organization != nil {
				out = append(out, record)
			}
		}
	}

	// Header participants are emergency contacts and similar roles.
	for _, participantEl := range doc.FindAll("participant") {
		roleEl := cdax.FindOne(participantEl, "associatedEntity")
		if roleEl == nil {
			continue
		}
		record := ContactRecord{
			Role:      cdax.Attr(roleEl, "classCode"),
			Person:    readPerson(cdax.FindOne(roleEl, "associatedPerson")),
			Addresses: readAddresses(roleEl),
			Telecoms:  readTelecoms(roleEl),
		}
		if org := readOrganization(cdax.FindOne(roleEl, "scopingOrganization")); org != nil {
			record.Organization = org
		}
		if record.Person != nil || record.Organization != nil {
			out = append(out, record)
		}
	}
	return out
}

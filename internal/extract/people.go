package extract

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
)

// Person is an administrative person sub-record (author, performer, legal
// authenticator, contact). Organization is a non-owning reference.
type Person struct {
	Prefix       string        `json:"prefix,omitempty"`
	Given        string        `json:"given,omitempty"`
	Family       string        `json:"family,omitempty"`
	Name         string        `json:"name,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
}

// Organization is an administrative organization sub-record owning its
// addresses and telecoms.
type Organization struct {
	Name      string    `json:"name,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
	Telecoms  []Telecom `json:"telecoms,omitempty"`
}

// Address is a postal address sub-record.
type Address struct {
	Use        string `json:"use,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Telecom is a contact-point sub-record.
type Telecom struct {
	Use   string `json:"use,omitempty"`
	Value string `json:"value,omitempty"`
}

// readPerson builds a Person from a name-bearing element (assignedPerson,
// guardianPerson, relatedPerson, patient). Nil when no name content exists.
func readPerson(el *etree.Element) *Person {
	if el == nil {
		return nil
	}
	nameEl := cdax.FindOne(el, "name")
	if nameEl == nil {
		return nil
	}

	p := &Person{
		Prefix: cdax.Text(cdax.FindOne(nameEl, "prefix")),
		Family: cdax.Text(cdax.FindOne(nameEl, "family")),
	}
	var givens []string
	for _, g := range cdax.FindAll(nameEl, "given") {
		if t := cdax.Text(g); t != "" {
			givens = append(givens, t)
		}
	}
	p.Given = strings.Join(givens, " ")

	parts := make([]string, 0, 3)
	for _, part := range []string{p.Prefix, p.Given, p.Family} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	p.Name = strings.Join(parts, " ")
	if p.Name == "" {
		// Some sources carry an unstructured name.
		p.Name = cdax.Text(nameEl)
	}
	if p.Name == "" {
		return nil
	}
	return p
}

// readOrganization builds an Organization from an organization element
// (representedOrganization, representedCustodianOrganization, scopingOrg).
func readOrganization(el *etree.Element) *Organization {
	if el == nil {
		return nil
	}
	org := &Organization{
		Name:      cdax.Text(cdax.FindOne(el, "name")),
		Addresses: readAddresses(el),
		Telecoms:  readTelecoms(el),
	}
	if org.Name == "" && len(org.Addresses) == 0 && len(org.Telecoms) == 0 {
		return nil
	}
	return org
}

// readAssignedEntity resolves an assignedEntity-shaped element into a person
// and organization pair. Either side may be nil.
func readAssignedEntity(el *etree.Element) (*Person, *Organization) {
	if el == nil {
		return nil, nil
	}
	person := readPerson(cdax.FindOne(el, "assignedPerson"))
	if person == nil {
		person = readPerson(cdax.FindOne(el, "assignedAuthoringDevice"))
	}
	org := readOrganization(cdax.FindOne(el, "representedOrganization"))
	if person != nil && org != nil {
		person.Organization = org
	}
	return person, org
}

func readAddresses(el *etree.Element) []Address {
	var out []Address
	for _, addrEl := range cdax.FindAll(el, "addr") {
		addr := Address{
			Use:        cdax.Attr(addrEl, "use"),
			Street:     cdax.Text(cdax.FindOne(addrEl, "streetAddressLine")),
			City:       cdax.Text(cdax.FindOne(addrEl, "city")),
			State:      cdax.Text(cdax.FindOne(addrEl, "state")),
			PostalCode: cdax.Text(cdax.FindOne(addrEl, "postalCode")),
			Country:    cdax.Text(cdax.FindOne(addrEl, "country")),
		}
		if addr.Street != "" || addr.City != "" || addr.State != "" ||
			addr.PostalCode != "" || addr.Country != "" {
			out = append(out, addr)
		}
	}
	return out
}

func readTelecoms(el *etree.Element) []Telecom {
	var out []Telecom
	for _, telEl := range cdax.FindAll(el, "telecom") {
		value := cdax.Attr(telEl, "value")
		if value == "" {
			continue
		}
		out = append(out, Telecom{Use: cdax.Attr(telEl, "use"), Value: value})
	}
	return out
}

// Package cdax provides namespace-agnostic access to CDA document trees.
//
// Source systems disagree on how the CDA namespace is declared: some bind
// urn:hl7-org:v3 as the default namespace, some bind it to a prefix, some
// omit it entirely, and a few use regional pharmacy-extension namespaces for
// the same logical elements. Lookups in this package resolve logical paths
// against all of those declaration styles so that callers never need to know
// which style a given document uses.
package cdax

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// Namespace URIs observed across connected source systems.
const (
	NamespaceHL7V3    = "urn:hl7-org:v3"
	NamespaceSDTC     = "urn:hl7-org:sdtc"
	NamespaceIHEPharm = "urn:ihe:pharm:medication"
)

// knownNamespaces lists the namespace variants tried by path lookups, the
// de-facto standard CDA namespace first.
var knownNamespaces = []string{
	NamespaceHL7V3,
	NamespaceSDTC,
	NamespaceIHEPharm,
}

// ErrMalformedDocument is returned when the input cannot be parsed as XML at
// all. It is the only fatal condition in the extraction core.
var ErrMalformedDocument = errors.New("cdax: malformed document")

// Document wraps a parsed CDA tree. The tree is read-only for the extraction
// core; nothing in this package or its callers mutates it.
type Document struct {
	tree *etree.Document
	root *etree.Element
}

// Parse reads raw XML into a Document. Any well-formedness failure is
// reported as ErrMalformedDocument; extraction must not proceed on it.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}

	return &Document{tree: tree, root: root}, nil
}

// Root returns the clinical-document root element.
func (d *Document) Root() *etree.Element {
	return d.root
}

// FindOne resolves a logical path from the document root.
func (d *Document) FindOne(path ...string) *etree.Element {
	return FindOne(d.root, path...)
}

// FindAll resolves a logical path from the document root, returning every
// match.
func (d *Document) FindAll(path ...string) []*etree.Element {
	return FindAll(d.root, path...)
}

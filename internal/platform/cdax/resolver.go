package cdax

import (
	"strings"

	"github.com/beevik/etree"
)

// FindOne resolves a logical path of local element names below start and
// returns the first match, or nil when nothing matches. Missing paths are
// never an error.
func FindOne(start *etree.Element, path ...string) *etree.Element {
	matches := FindAll(start, path...)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// FindAll resolves a logical path of local element names below start.
//
// Strategies are tried in strict precedence order, stopping at the first one
// that yields any result:
//
//  1. the path under each known namespace URI, standard namespace first
//  2. the path with no namespace qualification
//  3. a whole-subtree scan on the bare local name of the final path segment,
//     ignoring path structure entirely
//
// Results are de-duplicated preserving first-seen order.
func FindAll(start *etree.Element, path ...string) []*etree.Element {
	if start == nil || len(path) == 0 {
		return nil
	}

	var out []*etree.Element
	for _, ns := range knownNamespaces {
		out = append(out, walkPath(start, ns, path)...)
	}
	if found := dedupe(out); len(found) > 0 {
		return found
	}

	if found := dedupe(walkPath(start, "", path)); len(found) > 0 {
		return found
	}

	return dedupe(scanLocalName(start, path[len(path)-1]))
}

// walkPath matches path segment by segment among child elements whose local
// name equals the segment and whose resolved namespace equals ns.
func walkPath(start *etree.Element, ns string, path []string) []*etree.Element {
	current := []*etree.Element{start}
	for _, segment := range path {
		var next []*etree.Element
		for _, el := range current {
			for _, child := range el.ChildElements() {
				if child.Tag != segment {
					continue
				}
				if namespaceOf(child) != ns {
					continue
				}
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// scanLocalName collects every descendant of start whose local tag name
// equals name, in document order. The structure-blind last resort.
func scanLocalName(start *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	for _, child := range start.ChildElements() {
		if child.Tag == name {
			out = append(out, child)
		}
		out = append(out, scanLocalName(child, name)...)
	}
	return out
}

// namespaceOf resolves the namespace URI in effect for el by walking the
// xmlns declarations from el up to the document root. An element with no
// binding for its prefix (or no default binding when unprefixed) resolves to
// the empty string.
func namespaceOf(el *etree.Element) string {
	prefix := el.Space
	for node := el; node != nil; node = node.Parent() {
		for _, attr := range node.Attr {
			if prefix == "" {
				if attr.Space == "" && attr.Key == "xmlns" {
					return attr.Value
				}
			} else {
				if attr.Space == "xmlns" && attr.Key == prefix {
					return attr.Value
				}
			}
		}
	}
	return ""
}

// dedupe removes duplicate elements, preserving first-seen order. Duplicates
// arise when the same element is reachable through multiple namespace
// variants in a single strategy pass.
func dedupe(els []*etree.Element) []*etree.Element {
	if len(els) < 2 {
		return els
	}
	seen := make(map[*etree.Element]struct{}, len(els))
	out := els[:0]
	for _, el := range els {
		if _, ok := seen[el]; ok {
			continue
		}
		seen[el] = struct{}{}
		out = append(out, el)
	}
	return out
}

// Attr returns the named attribute of el, or "" when el is nil or the
// attribute is absent.
func Attr(el *etree.Element, name string) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue(name, "")
}

// Text returns the trimmed character content of el, or "" when el is nil.
func Text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

package sections

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
)

// Section is a located topic section. El is the section element inside the
// source tree and stays read-only.
type Section struct {
	Topic  Topic
	Title  string
	Code   string
	System string
	El     *etree.Element
}

// Locate finds the section for topic inside doc.
//
// Matching precedence: a section whose code element carries any of the
// topic's accepted (system, code) pairs wins; when no section matches by
// code, the topic's title keywords are matched case-insensitively as
// substrings of each section title. A nil result means "no section" and maps
// to zero records downstream, never to an error.
func Locate(doc *cdax.Document, topic Topic) *Section {
	def, ok := Define(topic)
	if !ok {
		return nil
	}

	els := doc.FindAll("component", "structuredBody", "component", "section")
	if len(els) == 0 {
		return nil
	}

	for _, el := range els {
		if s := matchByCode(el, def); s != nil {
			return s
		}
	}
	for _, el := range els {
		if s := matchByTitle(el, def); s != nil {
			return s
		}
	}
	return nil
}

func matchByCode(el *etree.Element, def Definition) *Section {
	codeEl := cdax.FindOne(el, "code")
	if codeEl == nil {
		return nil
	}
	code := cdax.Attr(codeEl, "code")
	system := cdax.Attr(codeEl, "codeSystem")
	if code == "" {
		return nil
	}
	for _, accepted := range def.Codes {
		if accepted.Code != code {
			continue
		}
		// A missing codeSystem attribute still matches: several sources
		// emit bare section codes.
		if system != "" && accepted.System != system {
			continue
		}
		return &Section{
			Topic:  def.Topic,
			Title:  cdax.Text(cdax.FindOne(el, "title")),
			Code:   code,
			System: system,
			El:     el,
		}
	}
	return nil
}

func matchByTitle(el *etree.Element, def Definition) *Section {
	title := cdax.Text(cdax.FindOne(el, "title"))
	if title == "" {
		return nil
	}
	lower := strings.ToLower(title)
	for _, kw := range def.TitleKeywords {
		if strings.Contains(lower, kw) {
			return &Section{
				Topic: def.Topic,
				Title: title,
				El:    el,
			}
		}
	}
	return nil
}

// Entries returns the direct entry children of the section.
func (s *Section) Entries() []*etree.Element {
	if s == nil || s.El == nil {
		return nil
	}
	return cdax.FindAll(s.El, "entry")
}

// Package extract walks located CDA sections into typed topic records.
//
// All extractors share one engine shape: locate the topic section, enumerate
// its entries, recurse organizers propagating their status and time onto
// children that omit their own, and map each leaf clinical statement into a
// flat record. A malformed entry is logged and skipped; it never aborts its
// siblings or other topics, and nothing here ever mutates the source tree.
package extract

import (
	"context"
	"strings"

	"github.com/beevik/etree"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/terminology"
)

// Coded is an originating (code, coding system) pair together with the
// display text carried by or resolved for it. Records keep the pair so a
// code is never interpreted without its system.
type Coded struct {
	Code    string `json:"code,omitempty"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
}

// Empty reports whether the reference carries neither code nor display.
func (c Coded) Empty() bool {
	return c.Code == "" && c.Display == ""
}

// ValueKind tags the representation of an observation value.
type ValueKind string

const (
	ValueCoded    ValueKind = "coded"
	ValueQuantity ValueKind = "quantity"
	ValueText     ValueKind = "text"
)

// Value is an observation value in one of its three representations.
type Value struct {
	Kind     ValueKind
	Coded    Coded  // Kind == ValueCoded
	Quantity string // Kind == ValueQuantity, numeric literal
	Unit     string // Kind == ValueQuantity
	Text     string // Kind == ValueText
}

// IsZero reports whether no value was present at all.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// readValue interprets the first value child of el according to its
// xsi:type. Unknown or missing types degrade to the text representation.
func readValue(el *etree.Element) Value {
	valueEl := cdax.FindOne(el, "value")
	if valueEl == nil {
		return Value{}
	}

	switch xsiType(valueEl) {
	case "CD", "CE", "CV", "CO":
		coded := Coded{
			Code:    cdax.Attr(valueEl, "code"),
			System:  cdax.Attr(valueEl, "codeSystem"),
			Display: cdax.Attr(valueEl, "displayName"),
		}
		if coded.Display == "" {
			coded.Display = cdax.Text(cdax.FindOne(valueEl, "originalText"))
		}
		if coded.Empty() {
			return Value{}
		}
		return Value{Kind: ValueCoded, Coded: coded}
	case "PQ", "INT", "REAL", "MO":
		quantity := cdax.Attr(valueEl, "value")
		if quantity == "" {
			return Value{}
		}
		return Value{Kind: ValueQuantity, Quantity: quantity, Unit: cdax.Attr(valueEl, "unit")}
	default:
		// ST, ED, untyped: try attribute value, then character content.
		if quantity := cdax.Attr(valueEl, "value"); quantity != "" {
			return Value{Kind: ValueQuantity, Quantity: quantity, Unit: cdax.Attr(valueEl, "unit")}
		}
		text := cdax.Text(valueEl)
		if text == "" {
			return Value{}
		}
		return Value{Kind: ValueText, Text: text}
	}
}

// xsiType returns the local part of the value's xsi:type attribute,
// uppercased ("epsos:PQ" and "xsi:type=PQ" both read as "PQ").
func xsiType(el *etree.Element) string {
	for _, attr := range el.Attr {
		if attr.Key != "type" {
			continue
		}
		t := attr.Value
		if i := strings.LastIndex(t, ":"); i >= 0 {
			t = t[i+1:]
		}
		return strings.ToUpper(strings.TrimSpace(t))
	}
	return ""
}

// formatValue renders a value for display: coded values resolve through the
// terminology chain, quantities join "value unit", text passes through.
func formatValue(ctx context.Context, res *terminology.Resolver, v Value, lang string) string {
	switch v.Kind {
	case ValueCoded:
		return res.DisplayOr(ctx, v.Coded.Display, v.Coded.Code, v.Coded.System, lang)
	case ValueQuantity:
		if v.Unit == "" {
			return v.Quantity
		}
		return v.Quantity + " " + v.Unit
	case ValueText:
		return v.Text
	default:
		return ""
	}
}

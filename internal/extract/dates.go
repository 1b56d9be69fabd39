package extract

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
)

// normalizeDate converts a compact HL7 timestamp into display form,
// tolerating partial dates: "2019" stays "2019", "201903" becomes "2019-03",
// "20190307" and longer become "2019-03-07". Anything shorter than a year or
// non-numeric in the date positions is returned as-is rather than dropped.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	// Strip a timezone suffix ("20190307120000+0100"). Offsets only occur
	// after a full date; a sign earlier than that means the value is already
	// formatted or not a compact timestamp at all.
	if i := strings.IndexAny(s, "+-"); i >= 8 {
		s = s[:i]
	} else if i >= 0 {
		return s
	}
	if len(s) < 4 || !digits(s[:4]) {
		return s
	}
	switch {
	case len(s) < 6 || !digits(s[4:6]):
		return s[:4]
	case len(s) < 8 || !digits(s[6:8]):
		return s[:4] + "-" + s[4:6]
	default:
		return s[:4] + "-" + s[4:6] + "-" + s[6:8]
	}
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// timeBounds reads the effectiveTime child of el into normalized low/high
// display dates. A point timestamp (value attribute) fills low only.
func timeBounds(el *etree.Element) (low, high string) {
	timeEl := cdax.FindOne(el, "effectiveTime")
	if timeEl == nil {
		return "", ""
	}
	if v := cdax.Attr(timeEl, "value"); v != "" {
		return normalizeDate(v), ""
	}
	if lowEl := cdax.FindOne(timeEl, "low"); lowEl != nil {
		low = normalizeDate(cdax.Attr(lowEl, "value"))
	}
	if highEl := cdax.FindOne(timeEl, "high"); highEl != nil {
		high = normalizeDate(cdax.Attr(highEl, "value"))
	}
	return low, high
}

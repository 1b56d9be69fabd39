package extract

import (
	"context"

	"github.com/healthlink/cdabridge/internal/platform/cdax"
	"github.com/healthlink/cdabridge/internal/sections"
)

// SocialHistoryRecord is one social-history observation (tobacco, alcohol,
// occupation and similar lifestyle facts).
type SocialHistoryRecord struct {
	Observation string `json:"observation,omitempty"`
	Value       string `json:"value,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Code        Coded  `json:"codeRef,omitempty"`
}

// SocialHistory extracts the social history topic.
func (x *Extractor) SocialHistory(ctx context.Context, doc *cdax.Document) []SocialHistoryRecord {
	return run(ctx, x, doc, sections.TopicSocialHistory, true,
		func(ctx context.Context, s statement) (SocialHistoryRecord, bool) {
			if s.kind != "observation" {
				return SocialHistoryRecord{}, false
			}

			record := SocialHistoryRecord{}
			record.From, record.To = statementTime(s)

			code := readCode(s.el)
			if !code.Empty() {
				record.Code = code
				record.Observation = x.res.DisplayOr(ctx, code.Display, code.Code, code.System, x.lang)
			}

			if v := readValue(s.el); !v.IsZero() {
				record.Value = formatValue(ctx, x.res, v, x.lang)
			} else {
				record.Value = cdax.Text(cdax.FindOne(s.el, "text"))
			}

			if record.Observation == "" && record.Value == "" {
				return SocialHistoryRecord{}, false
			}
			return record, true
		})
}

package fusion

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/collectorvault/appraise/internal/model"
)

// DropStats counts records discarded or passed through unconverted during
// normalization. Diagnostic only; normalization never fails.
type DropStats struct {
	BadPrice        int `json:"bad_price"`
	UnknownCurrency int `json:"unknown_currency"`
}

// Normalizer converts raw observations into the standardized form.
type Normalizer struct {
	tables *Tables
}

// NewNormalizer creates a normalizer over the given tables; nil means the
// embedded defaults.
func NewNormalizer(tables *Tables) *Normalizer {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Normalizer{tables: tables}
}

// Normalize converts raw observations to USD and the five-level condition
// scale. Records with non-positive or non-finite prices are dropped and
// counted; unrecognized currency codes pass through unconverted with a
// logged warning.
func (n *Normalizer) Normalize(raw []model.RawObservation) ([]model.NormalizedObservation, DropStats) {
	out := make([]model.NormalizedObservation, 0, len(raw))
	var stats DropStats

	for _, o := range raw {
		if !o.Usable() {
			stats.BadPrice++
			continue
		}

		price, converted := n.toUSD(o.Price, o.Currency)
		if !converted {
			stats.UnknownCurrency++
			zap.L().Warn("unrecognized currency code, passing price through unconverted",
				zap.String("source", o.Source),
				zap.String("currency", o.Currency),
			)
		}

		out = append(out, model.NormalizedObservation{
			Source:     o.Source,
			PriceUSD:   price,
			Condition:  n.ClassifyCondition(o.Condition),
			ObservedAt: o.ObservedAt,
			ListingURL: o.ListingURL,
		})
	}

	return out, stats
}

// toUSD converts a price via the static rate table. Empty codes are assumed
// USD. The second return is false when the code was not in the table.
func (n *Normalizer) toUSD(price float64, code string) (float64, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return price, true
	}
	if rate, ok := n.tables.Currencies[code]; ok {
		return price * rate, true
	}
	// Distinguish a valid ISO code missing from our table from garbage; both
	// pass through, but the log should say which.
	if _, err := currency.ParseISO(code); err == nil {
		zap.L().Debug("valid ISO currency missing from rate table", zap.String("currency", code))
	}
	return price, false
}

// ClassifyCondition maps free-text condition descriptions onto the standard
// scale. Unmatched text defaults to Good.
func (n *Normalizer) ClassifyCondition(text string) model.Condition {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return model.ConditionGood
	}
	for _, rule := range n.tables.Conditions {
		for _, kw := range rule.Keywords {
			if strings.Contains(t, kw) {
				return rule.level
			}
		}
	}
	return model.ConditionGood
}

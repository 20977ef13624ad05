package fields

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/docai"
)

// NormalizeRate canonicalizes a tax-rate representation into a single "N%"
// string. Upstream OCR sometimes double-encodes the percent sign; this
// guarantees exactly one "%" in the output without discarding an unparseable
// but human-meaningful string.
func NormalizeRate(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		stripped := strings.TrimSpace(strings.ReplaceAll(trimmed, "%", ""))
		stripped = strings.ReplaceAll(stripped, ",", "")
		d, err := decimal.NewFromString(stripped)
		if err != nil {
			// Do not fabricate a value for text like "exento".
			return trimmed
		}
		return d.String() + "%"
	case float64:
		return decimal.NewFromFloat(v).String() + "%"
	case int:
		return decimal.NewFromInt(int64(v)).String() + "%"
	case int64:
		return decimal.NewFromInt(v).String() + "%"
	case decimal.Decimal:
		return v.String() + "%"
	default:
		return strings.TrimSpace(coerceString(raw))
	}
}

// NormalizeRateField applies NormalizeRate to a raw analyzer field, falling
// back to the given default when the field is absent.
func NormalizeRateField(f docai.Field, def string) string {
	if f.IsZero() {
		return def
	}
	switch f.Type {
	case docai.TypeText:
		return NormalizeRate(f.Text)
	case docai.TypeCurrency, docai.TypeNumber:
		return NormalizeRate(f.Amount)
	default:
		if f.Raw != nil {
			return NormalizeRate(f.Raw)
		}
		return def
	}
}

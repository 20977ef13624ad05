// Package fields turns raw analyzer fields into typed invoice values with
// documented fallback rules. Absence is data here, not an error: every
// resolver takes a default and never fails.
package fields

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/docai"
)

// ResolveString extracts a string value from one raw field.
//
// Missing field or empty value returns the default. Dates format as
// YYYY-MM-DD. Addresses prefer the formatted string, else concatenate
// house-number, road, city, postal-code with ", ". Currency values render
// the unit-less amount. Anything else is coerced to a string before falling
// back to the default.
func ResolveString(f docai.Field, def string) string {
	if f.IsZero() {
		return def
	}

	switch f.Type {
	case docai.TypeText:
		return strings.TrimSpace(f.Text)
	case docai.TypeDate:
		return f.Date.Format("2006-01-02")
	case docai.TypeAddress:
		if s := formatAddress(f.Address); s != "" {
			return s
		}
		return def
	case docai.TypeCurrency, docai.TypeNumber:
		return f.Amount.String()
	default:
		if s := coerceString(f.Raw); s != "" {
			return s
		}
		return def
	}
}

// ResolveAmount extracts a unit-less decimal amount from one raw field.
// Textual values parse through the flexible number parser (commas allowed);
// unparseable or missing values return the default.
func ResolveAmount(f docai.Field, def decimal.Decimal) decimal.Decimal {
	if f.IsZero() {
		return def
	}

	switch f.Type {
	case docai.TypeCurrency, docai.TypeNumber:
		return f.Amount
	case docai.TypeText:
		if d, ok := parseAmount(f.Text); ok {
			return d
		}
		return def
	default:
		if d, ok := parseAmount(coerceString(f.Raw)); ok {
			return d
		}
		return def
	}
}

// ResolveDate extracts a date from one raw field. The zero time means the
// field was absent or did not parse.
func ResolveDate(f docai.Field) time.Time {
	if f.IsZero() {
		return time.Time{}
	}

	switch f.Type {
	case docai.TypeDate:
		return f.Date
	case docai.TypeText:
		return docai.ParseDate(strings.TrimSpace(f.Text))
	default:
		return time.Time{}
	}
}

// Member returns a named member of an object-typed field. Nested list
// entries (line items, tax details) resolve through this.
func Member(f docai.Field, name string) docai.Field {
	if f.Type != docai.TypeObject {
		return docai.Field{}
	}
	return f.Object[name]
}

func formatAddress(a *docai.Address) string {
	if a == nil {
		return ""
	}
	if strings.TrimSpace(a.Formatted) != "" {
		return strings.TrimSpace(a.Formatted)
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{a.HouseNumber, a.Road, a.City, a.PostalCode} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// parseAmount is the strict variant of docai.ParseDecimal: it reports whether
// the text actually parsed, so "0" is distinguishable from garbage.
func parseAmount(s string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func coerceString(raw interface{}) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", raw))
}

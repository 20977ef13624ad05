package fields

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/docai"
)

// taxIDPatterns are the regional identifier shapes mined from free-text
// address fields when no dedicated tax-id field resolved: letter+8 digits
// (CIF), 8 digits+letter (NIF), letter+7 digits+letter (NIE).
var taxIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]\d{8}\b`),
	regexp.MustCompile(`\b\d{8}[A-Z]\b`),
	regexp.MustCompile(`\b[A-Z]\d{7}[A-Z]\b`),
}

// SearchString tries each alias field name in order and returns the first
// present, non-empty value. It returns the default only when every alias
// fails; a not-found condition is never an error.
func SearchString(doc *docai.DocumentResult, aliases []string, def string) string {
	for _, name := range aliases {
		if f, ok := doc.Field(name); ok {
			if v := ResolveString(f, ""); v != "" {
				return v
			}
		}
	}
	return def
}

// SearchAmount tries each alias field name in order and returns the first
// resolvable nonzero amount, else the default.
func SearchAmount(doc *docai.DocumentResult, aliases []string, def decimal.Decimal) decimal.Decimal {
	for _, name := range aliases {
		if f, ok := doc.Field(name); ok {
			if v := ResolveAmount(f, decimal.Zero); !v.IsZero() {
				return v
			}
		}
	}
	return def
}

// SearchDate tries each alias field name in order; the zero time means no
// alias resolved to a parseable date.
func SearchDate(doc *docai.DocumentResult, aliases []string) time.Time {
	for _, name := range aliases {
		if f, ok := doc.Field(name); ok {
			if t := ResolveDate(f); !t.IsZero() {
				return t
			}
		}
	}
	return time.Time{}
}

// SearchTaxID resolves a tax identifier through the alias list and, failing
// that, mines the free-text address fields for identifier-shaped substrings.
func SearchTaxID(doc *docai.DocumentResult, aliases, addressAliases []string, def string) string {
	if v := SearchString(doc, aliases, ""); v != "" {
		return v
	}

	for _, name := range addressAliases {
		f, ok := doc.Field(name)
		if !ok {
			continue
		}
		text := strings.ToUpper(ResolveString(f, ""))
		for _, pattern := range taxIDPatterns {
			if m := pattern.FindString(text); m != "" {
				return m
			}
		}
	}
	return def
}

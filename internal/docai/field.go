package docai

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType tags the typed value carried by a Field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeDate     FieldType = "date"
	TypeCurrency FieldType = "currency"
	TypeNumber   FieldType = "number"
	TypeAddress  FieldType = "address"
	TypeList     FieldType = "list"
	TypeObject   FieldType = "object"
)

// Address is the structured address value some analyzers return for
// vendor/customer address fields.
type Address struct {
	Formatted   string `json:"formatted,omitempty"`
	HouseNumber string `json:"houseNumber,omitempty"`
	Road        string `json:"road,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
}

// Field is one raw value extracted by the document analysis service. Exactly
// one of the typed members is meaningful, selected by Type. Raw keeps the
// untyped value the analyzer returned so callers can attempt a string
// coercion when the typed read fails.
type Field struct {
	Type       FieldType        `json:"type"`
	Text       string           `json:"text,omitempty"`
	Date       time.Time        `json:"date,omitempty"`
	Amount     decimal.Decimal  `json:"amount,omitempty"`
	Address    *Address         `json:"address,omitempty"`
	List       []Field          `json:"list,omitempty"`
	Object     map[string]Field `json:"object,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Raw        interface{}      `json:"-"`
}

// IsZero reports whether the field is absent or carries no value.
func (f Field) IsZero() bool {
	switch f.Type {
	case TypeText:
		return strings.TrimSpace(f.Text) == ""
	case TypeDate:
		return f.Date.IsZero()
	case TypeCurrency, TypeNumber:
		return false
	case TypeAddress:
		return f.Address == nil
	case TypeList:
		return len(f.List) == 0
	case TypeObject:
		return len(f.Object) == 0
	default:
		return f.Raw == nil
	}
}

// DocumentResult is the analyzer output for one logical document: named
// fields plus a document-level confidence score.
type DocumentResult struct {
	Fields     map[string]Field `json:"fields"`
	Confidence float64          `json:"confidence"`
}

// Field returns the named field and whether it is present with a value.
func (d *DocumentResult) Field(name string) (Field, bool) {
	f, ok := d.Fields[name]
	if !ok || f.IsZero() {
		return Field{}, false
	}
	return f, true
}

// TextField builds a text-typed field.
func TextField(s string) Field {
	return Field{Type: TypeText, Text: s, Raw: s}
}

// DateField builds a date-typed field.
func DateField(t time.Time) Field {
	return Field{Type: TypeDate, Date: t, Raw: t}
}

// CurrencyField builds a currency-typed field.
func CurrencyField(d decimal.Decimal) Field {
	return Field{Type: TypeCurrency, Amount: d, Raw: d}
}

// NumberField builds a number-typed field.
func NumberField(d decimal.Decimal) Field {
	return Field{Type: TypeNumber, Amount: d, Raw: d}
}

// AddressField builds an address-typed field.
func AddressField(a Address) Field {
	return Field{Type: TypeAddress, Address: &a, Raw: a}
}

// ListField builds a list-typed field.
func ListField(items ...Field) Field {
	return Field{Type: TypeList, List: items}
}

// ObjectField builds an object-typed field.
func ObjectField(members map[string]Field) Field {
	return Field{Type: TypeObject, Object: members}
}

// ParseDate parses the date formats analyzers are known to emit. A zero time
// means the string did not parse.
func ParseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2006/01/02",
		"01/02/2006",
		"2006-01-02T15:04:05Z07:00",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseDecimal handles flexible number parsing from interface{}.
// Supports: numbers, strings, strings with commas (e.g., "3,965.34").
func ParseDecimal(v interface{}) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}

	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case decimal.Decimal:
		return val
	case string:
		if val == "" {
			return decimal.Zero
		}
		// Remove commas (thousands separator)
		cleaned := strings.ReplaceAll(val, ",", "")
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		if val == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

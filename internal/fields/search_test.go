package fields

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/docai"
)

func docWith(fields map[string]docai.Field) *docai.DocumentResult {
	return &docai.DocumentResult{Fields: fields}
}

func TestSearchStringAliasOrder(t *testing.T) {
	doc := docWith(map[string]docai.Field{
		"CustomerName": docai.TextField("Cliente S.A."),
		"VendorName":   docai.TextField("Proveedor S.L."),
	})

	got := SearchString(doc, []string{"VendorName", "CustomerName"}, "none")
	if got != "Proveedor S.L." {
		t.Errorf("SearchString = %q, want first alias to win", got)
	}

	got = SearchString(doc, []string{"MissingA", "CustomerName"}, "none")
	if got != "Cliente S.A." {
		t.Errorf("SearchString = %q, want fall-through to second alias", got)
	}

	got = SearchString(doc, []string{"MissingA", "MissingB"}, "none")
	if got != "none" {
		t.Errorf("SearchString = %q, want default when all aliases fail", got)
	}
}

func TestSearchAmountSkipsZero(t *testing.T) {
	doc := docWith(map[string]docai.Field{
		"InvoiceTotal": docai.CurrencyField(decimal.Zero),
		"AmountDue":    docai.CurrencyField(decimal.NewFromInt(121)),
	})

	got := SearchAmount(doc, []string{"InvoiceTotal", "AmountDue"}, decimal.Zero)
	if got.String() != "121" {
		t.Errorf("SearchAmount = %s, want 121", got)
	}
}

func TestSearchTaxIDMinesAddressText(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"letter plus eight digits", "Calle Mayor 1, CIF A58818501, Madrid", "A58818501"},
		{"eight digits plus letter", "Av. Sol 3 - 12345678Z - Sevilla", "12345678Z"},
		{"letter seven digits letter", "x1234567l Pol. Ind. Norte", "X1234567L"},
		{"no identifier", "Calle Mayor 1, Madrid", "No disponible"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docWith(map[string]docai.Field{
				"VendorAddress": docai.TextField(tt.address),
			})
			got := SearchTaxID(doc, []string{"VendorTaxId"}, []string{"VendorAddress"}, "No disponible")
			if got != tt.want {
				t.Errorf("SearchTaxID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchTaxIDPrefersAliasField(t *testing.T) {
	doc := docWith(map[string]docai.Field{
		"VendorTaxId":   docai.TextField("B12345678"),
		"VendorAddress": docai.TextField("CIF A58818501"),
	})

	got := SearchTaxID(doc, []string{"VendorTaxId"}, []string{"VendorAddress"}, "No disponible")
	if got != "B12345678" {
		t.Errorf("SearchTaxID = %q, want alias field to win over mining", got)
	}
}

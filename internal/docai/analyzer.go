package docai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Canonical field names exposed by the analyzer. The normalization engine
// looks these up through alias lists, so new analyzers only need to emit a
// subset of them.
const (
	FieldVendorName       = "VendorName"
	FieldOrganizationName = "OrganizationName"
	FieldVendorTaxID      = "VendorTaxId"
	FieldVendorAddress    = "VendorAddress"
	FieldCustomerName     = "CustomerName"
	FieldInvoiceID        = "InvoiceId"
	FieldInvoiceNumber    = "InvoiceNumber"
	FieldInvoiceDate      = "InvoiceDate"
	FieldDueDate          = "DueDate"
	FieldInvoiceTotal     = "InvoiceTotal"
	FieldAmountDue        = "AmountDue"
	FieldGrandTotal       = "GrandTotal"
	FieldTotalAmount      = "TotalAmount"
	FieldSubTotal         = "SubTotal"
	FieldTotalTax         = "TotalTax"
	FieldItems            = "Items"
	FieldTaxDetails       = "TaxDetails"
)

var (
	// ErrNoDocuments is returned when the analyzer produced a response but
	// found no invoice-shaped document in it.
	ErrNoDocuments = errors.New("no documents found in analysis result")

	// ErrProviderResponse is returned when the provider answer could not be
	// parsed into document results.
	ErrProviderResponse = errors.New("unparseable provider response")
)

// Analyzer is the document-analysis collaborator: one synchronous call per
// logical document (single file or the ordered pages of a multi-page group).
type Analyzer interface {
	Analyze(ctx context.Context, pages [][]byte, name string) ([]DocumentResult, error)
}

// Provider abstracts the vision model backing the analyzer (OpenAI, Gemini).
type Provider interface {
	// ExtractData sends the prompt plus page images and returns the raw
	// model response.
	ExtractData(ctx context.Context, prompt string, pages [][]byte) (string, error)
	// Name identifies the provider for logging.
	Name() string
}

// VisionAnalyzer implements Analyzer on top of a vision Provider: it prompts
// the model for field-level invoice JSON and converts the answer into typed
// document results.
type VisionAnalyzer struct {
	provider Provider
	log      zerolog.Logger
}

// NewVisionAnalyzer creates an analyzer backed by the given provider.
func NewVisionAnalyzer(provider Provider, log zerolog.Logger) *VisionAnalyzer {
	return &VisionAnalyzer{
		provider: provider,
		log:      log.With().Str("component", "docai").Logger(),
	}
}

// Analyze sends all pages of one logical document to the provider and parses
// the response into one DocumentResult per detected invoice.
func (a *VisionAnalyzer) Analyze(ctx context.Context, pages [][]byte, name string) ([]DocumentResult, error) {
	if len(pages) == 0 {
		return nil, ErrNoDocuments
	}

	response, err := a.provider.ExtractData(ctx, buildFieldPrompt(len(pages)), pages)
	if err != nil {
		return nil, fmt.Errorf("analysis of %s failed: %w", name, err)
	}

	a.log.Debug().
		Str("document", name).
		Str("provider", a.provider.Name()).
		Int("responseLength", len(response)).
		Msg("provider response received")

	docs, err := parseAnalysisResponse(response)
	if err != nil {
		return nil, fmt.Errorf("parsing analysis of %s: %w", name, err)
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	return docs, nil
}

// buildFieldPrompt asks the vision model for the canonical invoice fields as
// strict JSON. Numeric fields that are not readable on the document must be
// omitted, never fabricated.
func buildFieldPrompt(pageCount int) string {
	return fmt.Sprintf(`Eres un EXPERTO en lectura de facturas. Las %d imagen(es) adjuntas son las paginas EN ORDEN de un mismo documento.

Devuelve SOLO JSON valido (sin markdown, sin comentarios) con esta forma:
{
  "documents": [
    {
      "confidence": numero 0-1,
      "vendorName": "nombre del emisor/vendedor",
      "vendorTaxId": "CIF/NIF del emisor",
      "vendorAddress": {"formatted": "direccion completa", "houseNumber": "", "road": "", "city": "", "postalCode": ""},
      "customerName": "nombre del cliente si aparece",
      "invoiceId": "numero de factura",
      "invoiceDate": "YYYY-MM-DD",
      "dueDate": "YYYY-MM-DD",
      "invoiceTotal": numero,
      "subTotal": numero (base imponible),
      "totalTax": numero (IVA total),
      "amountDue": numero,
      "items": [{"description": "...", "quantity": 1, "unitPrice": 0, "amount": 0}],
      "taxDetails": [{"rate": "21%%", "amount": 0}]
    }
  ]
}

REGLAS:
1. Si las paginas contienen VARIAS facturas independientes, devuelve un elemento por factura.
2. NUNCA inventes datos: omite el campo (o usa null) si no puedes leerlo.
3. NUNCA calcules montos que no aparezcan impresos en el documento.
4. Los montos son numeros decimales, sin simbolo de moneda ni separador de miles.
5. Las tasas de IVA van como texto, ej "21%%".`, pageCount)
}

// rawDocument mirrors the JSON shape the provider is prompted for. Amount
// members stay interface{} so comma-grouped strings parse too.
type rawDocument struct {
	Confidence    float64     `json:"confidence"`
	VendorName    string      `json:"vendorName"`
	VendorTaxID   string      `json:"vendorTaxId"`
	VendorAddress *Address    `json:"vendorAddress"`
	CustomerName  string      `json:"customerName"`
	InvoiceID     string      `json:"invoiceId"`
	InvoiceDate   string      `json:"invoiceDate"`
	DueDate       string      `json:"dueDate"`
	InvoiceTotal  interface{} `json:"invoiceTotal"`
	SubTotal      interface{} `json:"subTotal"`
	TotalTax      interface{} `json:"totalTax"`
	AmountDue     interface{} `json:"amountDue"`
	Items         []struct {
		Description string      `json:"description"`
		Quantity    interface{} `json:"quantity"`
		UnitPrice   interface{} `json:"unitPrice"`
		Amount      interface{} `json:"amount"`
	} `json:"items"`
	TaxDetails []struct {
		Rate   interface{} `json:"rate"`
		Amount interface{} `json:"amount"`
	} `json:"taxDetails"`
}

// parseAnalysisResponse converts the provider's JSON answer into typed
// document results.
func parseAnalysisResponse(response string) ([]DocumentResult, error) {
	// Clean response (remove markdown code blocks if present)
	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var raw struct {
		Documents []rawDocument `json:"documents"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		// Some models answer with a bare document object instead of the
		// documents wrapper.
		var single rawDocument
		if err2 := json.Unmarshal([]byte(cleaned), &single); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderResponse, err)
		}
		raw.Documents = []rawDocument{single}
	}

	docs := make([]DocumentResult, 0, len(raw.Documents))
	for _, rd := range raw.Documents {
		docs = append(docs, rd.toResult())
	}
	return docs, nil
}

func (rd rawDocument) toResult() DocumentResult {
	fields := make(map[string]Field)

	setText := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			fields[name] = TextField(strings.TrimSpace(value))
		}
	}
	setDate := func(name, value string) {
		if t := ParseDate(value); !t.IsZero() {
			fields[name] = DateField(t)
		}
	}
	setCurrency := func(name string, value interface{}) {
		if value == nil {
			return
		}
		if d := ParseDecimal(value); !d.IsZero() {
			f := CurrencyField(d)
			f.Raw = value
			fields[name] = f
		}
	}

	setText(FieldVendorName, rd.VendorName)
	setText(FieldVendorTaxID, rd.VendorTaxID)
	setText(FieldCustomerName, rd.CustomerName)
	setText(FieldInvoiceID, rd.InvoiceID)
	setDate(FieldInvoiceDate, rd.InvoiceDate)
	setDate(FieldDueDate, rd.DueDate)
	setCurrency(FieldInvoiceTotal, rd.InvoiceTotal)
	setCurrency(FieldSubTotal, rd.SubTotal)
	setCurrency(FieldTotalTax, rd.TotalTax)
	setCurrency(FieldAmountDue, rd.AmountDue)

	if rd.VendorAddress != nil {
		addr := *rd.VendorAddress
		if addr.Formatted != "" || addr.Road != "" || addr.City != "" ||
			addr.HouseNumber != "" || addr.PostalCode != "" {
			fields[FieldVendorAddress] = AddressField(addr)
		}
	}

	if len(rd.Items) > 0 {
		items := make([]Field, 0, len(rd.Items))
		for _, it := range rd.Items {
			members := make(map[string]Field)
			if strings.TrimSpace(it.Description) != "" {
				members["Description"] = TextField(it.Description)
			}
			if d := ParseDecimal(it.Quantity); !d.IsZero() {
				members["Quantity"] = NumberField(d)
			}
			if d := ParseDecimal(it.UnitPrice); !d.IsZero() {
				members["UnitPrice"] = CurrencyField(d)
			}
			if d := ParseDecimal(it.Amount); !d.IsZero() {
				members["Amount"] = CurrencyField(d)
			}
			if len(members) > 0 {
				items = append(items, ObjectField(members))
			}
		}
		if len(items) > 0 {
			fields[FieldItems] = ListField(items...)
		}
	}

	if len(rd.TaxDetails) > 0 {
		taxes := make([]Field, 0, len(rd.TaxDetails))
		for _, td := range rd.TaxDetails {
			members := make(map[string]Field)
			switch rate := td.Rate.(type) {
			case string:
				if strings.TrimSpace(rate) != "" {
					members["Rate"] = TextField(rate)
				}
			case float64:
				members["Rate"] = NumberField(ParseDecimal(rate))
			}
			if d := ParseDecimal(td.Amount); !d.IsZero() {
				members["Amount"] = CurrencyField(d)
			}
			if len(members) > 0 {
				taxes = append(taxes, ObjectField(members))
			}
		}
		if len(taxes) > 0 {
			fields[FieldTaxDetails] = ListField(taxes...)
		}
	}

	return DocumentResult{Fields: fields, Confidence: rd.Confidence}
}

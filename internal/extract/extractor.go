// Package extract turns analyzer document results into normalized invoice
// records. Extraction is total: every input document yields exactly one
// record, with placeholders where resolution failed.
package extract

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/docai"
	"github.com/facturaIA/invoice-report-service/internal/fields"
	"github.com/facturaIA/invoice-report-service/internal/models"
)

// Alias lists for the robust field search, in priority order. Analyzers emit
// different subsets of these names depending on the backing model.
var (
	vendorNameAliases  = []string{docai.FieldVendorName, docai.FieldOrganizationName, docai.FieldCustomerName}
	vendorTaxIDAliases = []string{docai.FieldVendorTaxID}
	addressAliases     = []string{docai.FieldVendorAddress}
	invoiceIDAliases   = []string{docai.FieldInvoiceID, docai.FieldInvoiceNumber}
	totalAliases       = []string{docai.FieldInvoiceTotal, docai.FieldAmountDue, docai.FieldGrandTotal, docai.FieldTotalAmount}
	subTotalAliases    = []string{docai.FieldSubTotal}
	totalTaxAliases    = []string{docai.FieldTotalTax}
	invoiceDateAliases = []string{docai.FieldInvoiceDate}
	dueDateAliases     = []string{docai.FieldDueDate}
)

// Extractor normalizes analyzer output into invoice records.
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor creates an extractor that logs through the given logger.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log.With().Str("component", "extract").Logger()}
}

// Extract normalizes one analyzer document into an invoice record. index
// disambiguates synthetic ids when several documents in a batch lack one.
// Extract never fails: an internal panic degrades to a placeholder record
// carrying the failure description.
func (e *Extractor) Extract(doc *docai.DocumentResult, sourceFile string, index int) (inv models.NormalizedInvoice) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("sourceFile", sourceFile).
				Interface("panic", r).
				Msg("extraction panicked, emitting placeholder record")
			inv = Fallback(sourceFile, index, fmt.Sprintf("extraction panic: %v", r))
		}
	}()

	inv = models.NormalizedInvoice{
		VendorName:    fields.SearchString(doc, vendorNameAliases, models.PlaceholderVendorName),
		VendorTaxID:   fields.SearchTaxID(doc, vendorTaxIDAliases, addressAliases, models.PlaceholderTaxID),
		VendorAddress: fields.SearchString(doc, addressAliases, models.PlaceholderAddress),
		InvoiceID:     fields.SearchString(doc, invoiceIDAliases, ""),
		InvoiceDate:   fields.SearchDate(doc, invoiceDateAliases),
		DueDate:       fields.SearchDate(doc, dueDateAliases),
		SourceFile:    sourceFile,
		ProcessedAt:   time.Now().UTC(),
		PageCount:     1,
	}

	if inv.InvoiceID == "" {
		inv.InvoiceID = syntheticID(models.SyntheticIDPrefix, index)
	}

	subTotal := fields.SearchAmount(doc, subTotalAliases, decimal.Zero)
	totalTax := fields.SearchAmount(doc, totalTaxAliases, decimal.Zero)

	inv.InvoiceTotal = fields.SearchAmount(doc, totalAliases, decimal.Zero)
	if inv.InvoiceTotal.IsZero() && !subTotal.IsZero() {
		// The document printed a base and a tax but no grand total.
		inv.InvoiceTotal = subTotal.Add(totalTax)
	}

	inv.Items = extractItems(doc)
	inv.TaxDetails, inv.TaxInferred = extractTaxes(doc, inv.InvoiceTotal, subTotal, totalTax)

	inv.ConfidenceTier = tierFor(&inv)

	e.log.Debug().
		Str("sourceFile", sourceFile).
		Str("invoiceId", inv.InvoiceID).
		Str("vendor", inv.VendorName).
		Str("tier", string(inv.ConfidenceTier)).
		Msg("invoice normalized")

	return inv
}

// Fallback builds the placeholder record emitted when a document could not be
// analyzed or extracted at all. The record is valid output: it flows through
// validation and aggregation like any other, under the unidentified vendor.
func Fallback(sourceFile string, index int, cause string) models.NormalizedInvoice {
	return models.NormalizedInvoice{
		VendorName:     models.PlaceholderVendorName,
		VendorTaxID:    models.PlaceholderTaxID,
		VendorAddress:  models.PlaceholderAddress,
		InvoiceID:      syntheticID(models.ErrorIDPrefix, index),
		InvoiceTotal:   decimal.Zero,
		SourceFile:     sourceFile,
		ProcessedAt:    time.Now().UTC(),
		ConfidenceTier: models.TierLow,
		ErrorOriginal:  cause,
		PageCount:      1,
	}
}

// syntheticID builds a generated invoice id: prefix, wall-clock HHMMSS, and
// the document's batch index so simultaneous documents stay distinct.
func syntheticID(prefix string, index int) string {
	return fmt.Sprintf("%s%s_%d", prefix, time.Now().Format("150405"), index)
}

func extractItems(doc *docai.DocumentResult) []models.LineItem {
	list, ok := doc.Field(docai.FieldItems)
	if !ok {
		return nil
	}

	items := make([]models.LineItem, 0, len(list.List))
	for _, entry := range list.List {
		item := models.LineItem{
			Description: fields.ResolveString(fields.Member(entry, "Description"), ""),
			Quantity:    fields.ResolveAmount(fields.Member(entry, "Quantity"), decimal.Zero),
			UnitPrice:   fields.ResolveAmount(fields.Member(entry, "UnitPrice"), decimal.Zero),
			Amount:      fields.ResolveAmount(fields.Member(entry, "Amount"), decimal.Zero),
		}
		if item.Amount.IsZero() && !item.Quantity.IsZero() && !item.UnitPrice.IsZero() {
			item.Amount = item.Quantity.Mul(item.UnitPrice)
		}
		if item.Description == "" && item.Amount.IsZero() {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// extractTaxes reads the document's tax lines, normalizing every rate. When
// the document carried no tax breakdown, a single line is inferred from the
// printed amounts: rate = (total-subtotal)/subtotal, amount = total-subtotal.
// Inference only runs when total exceeds a positive subtotal; anything else
// would fabricate a negative or meaningless tax.
func extractTaxes(doc *docai.DocumentResult, total, subTotal, totalTax decimal.Decimal) ([]models.TaxDetail, bool) {
	if list, ok := doc.Field(docai.FieldTaxDetails); ok {
		details := make([]models.TaxDetail, 0, len(list.List))
		for _, entry := range list.List {
			detail := models.TaxDetail{
				Rate:   fields.NormalizeRateField(fields.Member(entry, "Rate"), "0%"),
				Amount: fields.ResolveAmount(fields.Member(entry, "Amount"), decimal.Zero),
			}
			details = append(details, detail)
		}
		if len(details) > 0 {
			return details, false
		}
	}

	if !totalTax.IsZero() && subTotal.IsPositive() {
		rate := totalTax.Div(subTotal).Mul(decimal.NewFromInt(100)).Round(2)
		return []models.TaxDetail{{Rate: fields.NormalizeRate(rate), Amount: totalTax}}, true
	}

	if subTotal.IsPositive() && total.GreaterThan(subTotal) {
		amount := total.Sub(subTotal)
		rate := amount.Div(subTotal).Mul(decimal.NewFromInt(100)).Round(2)
		return []models.TaxDetail{{Rate: fields.NormalizeRate(rate), Amount: amount}}, true
	}

	return nil, false
}

// tierFor maps the count of genuinely extracted key fields to a confidence
// tier: all three key fields is enhanced, two is basic, less is low.
func tierFor(inv *models.NormalizedInvoice) models.ConfidenceTier {
	switch inv.KeyFieldCount() {
	case 3:
		return models.TierEnhanced
	case 2:
		return models.TierBasic
	default:
		return models.TierLow
	}
}

package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConfidenceTier is the coarse quality label attached to a normalized invoice,
// based on how many key fields were genuinely extracted.
type ConfidenceTier string

const (
	TierEnhanced ConfidenceTier = "enhanced"
	TierBasic    ConfidenceTier = "basic"
	TierLow      ConfidenceTier = "low"
)

// Placeholder literals used when a field cannot be resolved. They are stable
// strings so downstream consumers (and the vendor aggregator) can tell a
// defaulted field from genuinely extracted data.
const (
	PlaceholderVendorName = "Empresa No Identificada"
	PlaceholderTaxID      = "No disponible"
	PlaceholderAddress    = "No disponible"

	// SyntheticIDPrefix prefixes invoice ids generated when the document
	// carried none. ErrorIDPrefix marks records synthesized after a failed
	// extraction.
	SyntheticIDPrefix = "FACT_"
	ErrorIDPrefix     = "ERROR_"

	// UnidentifiedVendorPrefix keys vendor buckets whose invoices had no
	// resolvable vendor name. A per-file hash suffix keeps distinct
	// unidentified documents from collapsing into one bucket.
	UnidentifiedVendorPrefix = "Empresa_No_Identificada_"
)

// NormalizedInvoice is the canonical invoice record produced by the extraction
// engine. Every field is populated: unresolvable fields carry their
// documented placeholder or zero default, never a nil.
type NormalizedInvoice struct {
	VendorName    string `json:"vendorName"`
	VendorTaxID   string `json:"vendorTaxId"`
	VendorAddress string `json:"vendorAddress"`

	InvoiceID   string    `json:"invoiceId"`
	InvoiceDate time.Time `json:"invoiceDate,omitempty"`
	DueDate     time.Time `json:"dueDate,omitempty"`

	InvoiceTotal decimal.Decimal `json:"invoiceTotal"`

	Items      []LineItem  `json:"items,omitempty"`
	TaxDetails []TaxDetail `json:"taxDetails,omitempty"`

	// TaxInferred marks records whose single tax line was derived from
	// total-subtotal instead of being read off the document.
	TaxInferred bool `json:"taxInferred,omitempty"`

	SourceFile  string    `json:"sourceFile"`
	ProcessedAt time.Time `json:"processedAt"`

	ConfidenceTier ConfidenceTier `json:"confidenceTier"`

	// IsValid is set by the extraction validator. Invalid records are kept
	// and forwarded with a low tier; they are never dropped.
	IsValid bool `json:"isValid"`

	// ErrorOriginal carries the failure description when extraction fell
	// back to a placeholder record.
	ErrorOriginal string `json:"errorOriginal,omitempty"`

	PageCount   int    `json:"pageCount"`
	IsMultiPage bool   `json:"isMultiPage"`
	PageGroupID string `json:"pageGroupId,omitempty"`

	// GroupFiles lists every member file of a multi-page group in page
	// order, so per-file reporting can account for pages beyond SourceFile.
	GroupFiles []string `json:"groupFiles,omitempty"`
}

// LineItem is one invoice line. Amount is back-filled as quantity*unitPrice
// when the document carried both factors but no amount.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// TaxDetail is one tax line. Rate is always a canonical "N%" string.
type TaxDetail struct {
	Rate   string          `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// KeyFieldCount reports how many of the three key fields (vendor name,
// invoice id, total) hold genuinely extracted data rather than a placeholder
// or a synthesized default.
func (inv *NormalizedInvoice) KeyFieldCount() int {
	count := 0
	if inv.VendorName != "" && inv.VendorName != PlaceholderVendorName {
		count++
	}
	if inv.InvoiceID != "" && !inv.HasSyntheticID() {
		count++
	}
	if !inv.InvoiceTotal.IsZero() {
		count++
	}
	return count
}

// HasSyntheticID reports whether the invoice id was generated by the engine
// instead of extracted from the document.
func (inv *NormalizedInvoice) HasSyntheticID() bool {
	return strings.HasPrefix(inv.InvoiceID, SyntheticIDPrefix) ||
		strings.HasPrefix(inv.InvoiceID, ErrorIDPrefix)
}

// TaxTotal sums the amounts of all tax detail lines.
func (inv *NormalizedInvoice) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range inv.TaxDetails {
		total = total.Add(t.Amount)
	}
	return total
}

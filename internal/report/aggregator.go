// Package report groups normalized invoices by vendor and produces the batch
// summary consumed by the exporters.
package report

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/models"
)

// VendorBucket holds every invoice attributed to one vendor plus the
// per-vendor totals the report sheets are built from.
type VendorBucket struct {
	// Key is the grouping key: the vendor name, or a synthetic
	// per-source-file key for unidentified vendors.
	Key        string                     `json:"key"`
	VendorName string                     `json:"vendorName"`
	Invoices   []models.NormalizedInvoice `json:"invoices"`
	GrandTotal decimal.Decimal            `json:"grandTotal"`
	// TaxSummary accumulates tax amounts per canonical rate string. Rates
	// match exactly: "21%" and "21.0%" are distinct lines on purpose,
	// because rate normalization already happened upstream.
	TaxSummary map[string]decimal.Decimal `json:"taxSummary"`
}

// TaxRates returns the summary's rate strings in sorted order so rendered
// reports are deterministic.
func (b *VendorBucket) TaxRates() []string {
	rates := make([]string, 0, len(b.TaxSummary))
	for rate := range b.TaxSummary {
		rates = append(rates, rate)
	}
	sort.Strings(rates)
	return rates
}

// Aggregator groups invoices into vendor buckets.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates an aggregator that logs inconsistencies through the
// given logger.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log.With().Str("component", "report").Logger()}
}

// Aggregate groups the invoices by vendor, preserving the order in which
// vendors first appear. Invoices with the placeholder vendor name each get
// their own bucket, keyed by a hash of their source file, so unrelated
// unidentified documents never merge. Every invoice lands in exactly one
// bucket; none are dropped.
func (a *Aggregator) Aggregate(invoices []models.NormalizedInvoice) []VendorBucket {
	byKey := make(map[string]*VendorBucket)
	var order []string

	for _, inv := range invoices {
		key := bucketKey(&inv)

		bucket, ok := byKey[key]
		if !ok {
			bucket = &VendorBucket{
				Key:        key,
				VendorName: inv.VendorName,
				TaxSummary: make(map[string]decimal.Decimal),
			}
			byKey[key] = bucket
			order = append(order, key)
		}

		bucket.Invoices = append(bucket.Invoices, inv)
		bucket.GrandTotal = bucket.GrandTotal.Add(inv.InvoiceTotal)
		for _, tax := range inv.TaxDetails {
			bucket.TaxSummary[tax.Rate] = bucket.TaxSummary[tax.Rate].Add(tax.Amount)
		}
	}

	buckets := make([]VendorBucket, 0, len(order))
	for _, key := range order {
		bucket := byKey[key]
		a.warnTaxExceedsTotal(bucket)
		buckets = append(buckets, *bucket)
	}
	return buckets
}

// warnTaxExceedsTotal flags vendor buckets whose accumulated tax is larger
// than the accumulated totals. The bucket is still reported; the condition
// usually means the analyzer misread an amount on one of the documents.
func (a *Aggregator) warnTaxExceedsTotal(bucket *VendorBucket) {
	taxTotal := decimal.Zero
	for _, amount := range bucket.TaxSummary {
		taxTotal = taxTotal.Add(amount)
	}
	if taxTotal.GreaterThan(bucket.GrandTotal) {
		a.log.Warn().
			Str("vendor", bucket.Key).
			Str("taxTotal", taxTotal.String()).
			Str("grandTotal", bucket.GrandTotal.String()).
			Msg("accumulated tax exceeds accumulated totals")
	}
}

// bucketKey returns the vendor grouping key. Unidentified vendors are keyed
// per source file with a short stable hash suffix.
func bucketKey(inv *models.NormalizedInvoice) string {
	if inv.VendorName != "" && inv.VendorName != models.PlaceholderVendorName {
		return inv.VendorName
	}
	h := fnv.New32a()
	h.Write([]byte(inv.SourceFile))
	return fmt.Sprintf("%s%04d", models.UnidentifiedVendorPrefix, h.Sum32()%10000)
}

package report

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/models"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(zerolog.Nop())
}

func TestAggregateGroupsByVendor(t *testing.T) {
	invoices := []models.NormalizedInvoice{
		{VendorName: "Acme S.L.", SourceFile: "a1.pdf", InvoiceTotal: decimal.NewFromInt(121),
			TaxDetails: []models.TaxDetail{{Rate: "21%", Amount: decimal.NewFromInt(21)}}},
		{VendorName: "Beta S.A.", SourceFile: "b1.pdf", InvoiceTotal: decimal.NewFromInt(55),
			TaxDetails: []models.TaxDetail{{Rate: "10%", Amount: decimal.NewFromInt(5)}}},
		{VendorName: "Acme S.L.", SourceFile: "a2.pdf", InvoiceTotal: decimal.NewFromInt(242),
			TaxDetails: []models.TaxDetail{{Rate: "21%", Amount: decimal.NewFromInt(42)}}},
	}

	buckets := newTestAggregator().Aggregate(invoices)

	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if buckets[0].Key != "Acme S.L." || buckets[1].Key != "Beta S.A." {
		t.Errorf("bucket order = [%q, %q], want first-appearance order", buckets[0].Key, buckets[1].Key)
	}
	acme := buckets[0]
	if len(acme.Invoices) != 2 {
		t.Errorf("acme invoices = %d, want 2", len(acme.Invoices))
	}
	if acme.GrandTotal.String() != "363" {
		t.Errorf("acme GrandTotal = %s, want 363", acme.GrandTotal)
	}
	if got := acme.TaxSummary["21%"]; got.String() != "63" {
		t.Errorf("acme 21%% tax = %s, want 63", got)
	}
}

func TestAggregateConservesInvoices(t *testing.T) {
	invoices := []models.NormalizedInvoice{
		{VendorName: "Acme S.L.", SourceFile: "a.pdf", InvoiceTotal: decimal.NewFromInt(1)},
		{VendorName: models.PlaceholderVendorName, SourceFile: "x.jpg"},
		{VendorName: "Beta S.A.", SourceFile: "b.pdf", InvoiceTotal: decimal.NewFromInt(2)},
	}

	buckets := newTestAggregator().Aggregate(invoices)

	count := 0
	for _, b := range buckets {
		count += len(b.Invoices)
	}
	if count != len(invoices) {
		t.Errorf("bucketed %d invoices, want all %d", count, len(invoices))
	}
}

func TestAggregateUnidentifiedVendorsStaySeparate(t *testing.T) {
	invoices := []models.NormalizedInvoice{
		{VendorName: models.PlaceholderVendorName, SourceFile: "a.jpg"},
		{VendorName: models.PlaceholderVendorName, SourceFile: "b.jpg"},
	}

	buckets := newTestAggregator().Aggregate(invoices)

	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want one per unidentified source file", len(buckets))
	}
	for _, b := range buckets {
		if !strings.HasPrefix(b.Key, models.UnidentifiedVendorPrefix) {
			t.Errorf("key = %q, want unidentified prefix", b.Key)
		}
	}
	if buckets[0].Key == buckets[1].Key {
		t.Errorf("unidentified buckets collide on %q", buckets[0].Key)
	}
}

func TestAggregateUnidentifiedKeyIsStable(t *testing.T) {
	inv := []models.NormalizedInvoice{{VendorName: models.PlaceholderVendorName, SourceFile: "a.jpg"}}

	first := newTestAggregator().Aggregate(inv)[0].Key
	second := newTestAggregator().Aggregate(inv)[0].Key

	if first != second {
		t.Errorf("unidentified key unstable: %q then %q", first, second)
	}
}

func TestAggregateDistinctRatesStayDistinct(t *testing.T) {
	invoices := []models.NormalizedInvoice{
		{VendorName: "Acme S.L.", SourceFile: "a.pdf", InvoiceTotal: decimal.NewFromInt(131),
			TaxDetails: []models.TaxDetail{
				{Rate: "21%", Amount: decimal.NewFromInt(21)},
				{Rate: "10%", Amount: decimal.NewFromInt(10)},
			}},
	}

	bucket := newTestAggregator().Aggregate(invoices)[0]

	if len(bucket.TaxSummary) != 2 {
		t.Fatalf("got %d tax lines, want 2", len(bucket.TaxSummary))
	}
	rates := bucket.TaxRates()
	if rates[0] != "10%" || rates[1] != "21%" {
		t.Errorf("TaxRates = %v, want sorted [10%% 21%%]", rates)
	}
}

func TestSummarize(t *testing.T) {
	invoices := []models.NormalizedInvoice{
		{SourceFile: "a.pdf", InvoiceID: "F-001", ConfidenceTier: models.TierEnhanced, InvoiceTotal: decimal.NewFromInt(100)},
		{SourceFile: "b.pdf", InvoiceID: "FACT_120000_1", ConfidenceTier: models.TierBasic, InvoiceTotal: decimal.NewFromInt(50)},
		{SourceFile: "c.pdf", InvoiceID: "ERROR_120000_2", ConfidenceTier: models.TierLow, ErrorOriginal: "analysis failed"},
	}

	s := Summarize(invoices)

	if s.Processed != 2 || s.Failed != 1 {
		t.Errorf("processed/failed = %d/%d, want 2/1", s.Processed, s.Failed)
	}
	if s.Enhanced != 1 || s.Basic != 1 || s.Low != 1 {
		t.Errorf("tiers = %d/%d/%d, want 1/1/1", s.Enhanced, s.Basic, s.Low)
	}
	if s.Total.String() != "150" {
		t.Errorf("Total = %s, want 150", s.Total)
	}

	lines := s.Lines()
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	if !strings.Contains(lines[2], "analysis failed") {
		t.Errorf("failed line = %q, want error description", lines[2])
	}
}

func TestSummarizeListsEveryGroupFile(t *testing.T) {
	invoices := []models.NormalizedInvoice{
		{
			SourceFile:     "foo_1.pdf",
			GroupFiles:     []string{"foo_1.pdf", "foo_2.pdf", "foo_3.pdf"},
			InvoiceID:      "F-001",
			ConfidenceTier: models.TierEnhanced,
			InvoiceTotal:   decimal.NewFromInt(100),
			IsMultiPage:    true,
			PageCount:      3,
		},
	}

	s := Summarize(invoices)

	if len(s.Statuses) != 3 {
		t.Fatalf("got %d statuses, want one per input file", len(s.Statuses))
	}
	for i, want := range []string{"foo_1.pdf", "foo_2.pdf", "foo_3.pdf"} {
		if s.Statuses[i].SourceFile != want {
			t.Errorf("statuses[%d].SourceFile = %q, want %q", i, s.Statuses[i].SourceFile, want)
		}
		if s.Statuses[i].InvoiceID != "F-001" {
			t.Errorf("statuses[%d].InvoiceID = %q, want the group's invoice", i, s.Statuses[i].InvoiceID)
		}
	}
	if s.Processed != 1 {
		t.Errorf("Processed = %d, want counters per record, not per file", s.Processed)
	}
}

func TestSummarizeDoesNotDuplicateSharedGroupFiles(t *testing.T) {
	// Two invoices found inside the same multi-page group share the member
	// file list; the pages must be listed once.
	group := []string{"lote_1.pdf", "lote_2.pdf"}
	invoices := []models.NormalizedInvoice{
		{SourceFile: "lote_1.pdf", GroupFiles: group, InvoiceID: "F-001", ConfidenceTier: models.TierBasic},
		{SourceFile: "lote_1.pdf", GroupFiles: group, InvoiceID: "F-002", ConfidenceTier: models.TierBasic},
	}

	s := Summarize(invoices)

	if len(s.Statuses) != 3 {
		t.Fatalf("got %d statuses, want 2 records + 1 extra page", len(s.Statuses))
	}
	count := 0
	for _, st := range s.Statuses {
		if st.SourceFile == "lote_2.pdf" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("lote_2.pdf listed %d times, want once", count)
	}
}

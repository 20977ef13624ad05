package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/docai"
	"github.com/facturaIA/invoice-report-service/internal/models"
)

// fakeAnalyzer answers from a canned table keyed by group name and records
// the page counts it was called with.
type fakeAnalyzer struct {
	mu        sync.Mutex
	responses map[string][]docai.DocumentResult
	errors    map[string]error
	pageCalls map[string]int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, pages [][]byte, name string) ([]docai.DocumentResult, error) {
	f.mu.Lock()
	if f.pageCalls == nil {
		f.pageCalls = make(map[string]int)
	}
	f.pageCalls[name] = len(pages)
	f.mu.Unlock()

	if err, ok := f.errors[name]; ok {
		return nil, err
	}
	if docs, ok := f.responses[name]; ok {
		return docs, nil
	}
	return nil, docai.ErrNoDocuments
}

func invoiceDoc(vendor, id string, total int64) docai.DocumentResult {
	return docai.DocumentResult{
		Fields: map[string]docai.Field{
			docai.FieldVendorName:   docai.TextField(vendor),
			docai.FieldInvoiceID:    docai.TextField(id),
			docai.FieldInvoiceTotal: docai.CurrencyField(decimal.NewFromInt(total)),
		},
		Confidence: 0.9,
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	e := NewEngine(&fakeAnalyzer{}, 2, zerolog.Nop())

	if _, err := e.Process(context.Background(), nil); !errors.Is(err, ErrNoProcessableInput) {
		t.Errorf("err = %v, want ErrNoProcessableInput", err)
	}
}

func TestProcessGroupsPagesBeforeAnalysis(t *testing.T) {
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"foo":   {invoiceDoc("Acme S.L.", "F-001", 121)},
			"other": {invoiceDoc("Beta S.A.", "F-002", 55)},
		},
	}
	e := NewEngine(fake, 2, zerolog.Nop())

	result, err := e.Process(context.Background(), []InputFile{
		{Name: "foo_1.pdf", Data: []byte("p1")},
		{Name: "foo_2.pdf", Data: []byte("p2")},
		{Name: "other.jpg", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := fake.pageCalls["foo"]; got != 2 {
		t.Errorf("foo analyzed with %d pages, want 2", got)
	}
	if got := fake.pageCalls["other"]; got != 1 {
		t.Errorf("other analyzed with %d pages, want 1", got)
	}
	if len(result.Invoices) != 2 {
		t.Fatalf("got %d invoices, want 2", len(result.Invoices))
	}

	multi := result.Invoices[0]
	if multi.InvoiceID != "F-001" {
		t.Fatalf("invoices out of group order: first id = %q", multi.InvoiceID)
	}
	if !multi.IsMultiPage || multi.PageCount != 2 || multi.PageGroupID != "foo" {
		t.Errorf("multi-page marks = {%v, %d, %q}, want {true, 2, foo}", multi.IsMultiPage, multi.PageCount, multi.PageGroupID)
	}
	if result.Invoices[1].IsMultiPage {
		t.Error("single-file invoice marked multi-page")
	}
}

func TestProcessIsolatesGroupFailures(t *testing.T) {
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"buena": {invoiceDoc("Acme S.L.", "F-001", 121)},
		},
		errors: map[string]error{
			"rota": errors.New("provider timeout"),
		},
	}
	e := NewEngine(fake, 2, zerolog.Nop())

	result, err := e.Process(context.Background(), []InputFile{
		{Name: "buena.pdf", Data: []byte("a")},
		{Name: "rota.pdf", Data: []byte("b")},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Invoices) != 2 {
		t.Fatalf("got %d invoices, want a record per group even on failure", len(result.Invoices))
	}
	failed := result.Invoices[1]
	if failed.ErrorOriginal == "" {
		t.Error("failed group record carries no error description")
	}
	if failed.VendorName != models.PlaceholderVendorName {
		t.Errorf("failed VendorName = %q, want placeholder", failed.VendorName)
	}
	if result.Summary.Processed != 1 || result.Summary.Failed != 1 {
		t.Errorf("summary = %d/%d, want 1 processed, 1 failed", result.Summary.Processed, result.Summary.Failed)
	}
}

func TestProcessEmptyAnalysisStillYieldsRecord(t *testing.T) {
	// An analyzer may answer with zero documents and a nil error; the file
	// must still surface as a failed record, never disappear.
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"vacia": {},
		},
	}
	e := NewEngine(fake, 1, zerolog.Nop())

	result, err := e.Process(context.Background(), []InputFile{{Name: "vacia.pdf", Data: []byte("x")}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Invoices) != 1 {
		t.Fatalf("got %d invoices, want 1 placeholder record", len(result.Invoices))
	}
	inv := result.Invoices[0]
	if inv.ErrorOriginal == "" {
		t.Error("placeholder record carries no error description")
	}
	if inv.SourceFile != "vacia.pdf" {
		t.Errorf("SourceFile = %q, want vacia.pdf", inv.SourceFile)
	}
	if len(result.Summary.Statuses) != 1 || result.Summary.Failed != 1 {
		t.Errorf("summary statuses/failed = %d/%d, want 1/1",
			len(result.Summary.Statuses), result.Summary.Failed)
	}
}

func TestProcessSummaryCoversAllInputFiles(t *testing.T) {
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"foo": {invoiceDoc("Acme S.L.", "F-001", 121)},
		},
	}
	e := NewEngine(fake, 1, zerolog.Nop())

	result, err := e.Process(context.Background(), []InputFile{
		{Name: "foo_1.pdf", Data: []byte("p1")},
		{Name: "foo_2.pdf", Data: []byte("p2")},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got := make(map[string]bool)
	for _, st := range result.Summary.Statuses {
		got[st.SourceFile] = true
	}
	for _, want := range []string{"foo_1.pdf", "foo_2.pdf"} {
		if !got[want] {
			t.Errorf("summary is missing a status for %s", want)
		}
	}
	if result.Summary.Processed != 1 {
		t.Errorf("Processed = %d, want the counters to stay per record", result.Summary.Processed)
	}
}

func TestProcessMultipleInvoicesInOneDocument(t *testing.T) {
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"lote": {
				invoiceDoc("Acme S.L.", "F-001", 100),
				invoiceDoc("Beta S.A.", "F-002", 200),
			},
		},
	}
	e := NewEngine(fake, 1, zerolog.Nop())

	result, err := e.Process(context.Background(), []InputFile{{Name: "lote.pdf", Data: []byte("x")}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Invoices) != 2 {
		t.Fatalf("got %d invoices, want 2 from one file", len(result.Invoices))
	}
	if len(result.Buckets) != 2 {
		t.Errorf("got %d vendor buckets, want 2", len(result.Buckets))
	}
	for _, inv := range result.Invoices {
		if inv.SourceFile != "lote.pdf" {
			t.Errorf("SourceFile = %q, want lote.pdf", inv.SourceFile)
		}
	}
}

func TestProcessCancelledContextFailsRemainingGroups(t *testing.T) {
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"a": {invoiceDoc("Acme S.L.", "F-001", 100)},
		},
	}
	e := NewEngine(fake, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Process(ctx, []InputFile{{Name: "a.pdf", Data: []byte("x")}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Summary.Failed != 1 {
		t.Errorf("failed = %d, want the undispatched group reported as failed", result.Summary.Failed)
	}
}

func TestProcessAggregatesVendors(t *testing.T) {
	fake := &fakeAnalyzer{
		responses: map[string][]docai.DocumentResult{
			"a": {invoiceDoc("Acme S.L.", "F-001", 100)},
			"b": {invoiceDoc("Acme S.L.", "F-002", 50)},
		},
	}
	e := NewEngine(fake, 2, zerolog.Nop())

	result, err := e.Process(context.Background(), []InputFile{
		{Name: "a.pdf", Data: []byte("x")},
		{Name: "b.pdf", Data: []byte("y")},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(result.Buckets))
	}
	if result.Buckets[0].GrandTotal.String() != "150" {
		t.Errorf("GrandTotal = %s, want 150", result.Buckets[0].GrandTotal)
	}
	if result.BatchID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("BatchID not assigned")
	}
}

// Package pipeline runs a batch of uploaded files through grouping, document
// analysis, extraction, validation and vendor aggregation.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facturaIA/invoice-report-service/internal/docai"
	"github.com/facturaIA/invoice-report-service/internal/extract"
	"github.com/facturaIA/invoice-report-service/internal/grouping"
	"github.com/facturaIA/invoice-report-service/internal/models"
	"github.com/facturaIA/invoice-report-service/internal/report"
)

// ErrNoProcessableInput is returned when the batch carries no files at all.
var ErrNoProcessableInput = errors.New("no processable input files")

// defaultWorkers bounds analyzer concurrency when the configuration does not.
const defaultWorkers = 4

// InputFile is one uploaded file: its original name drives page grouping.
// Name must be unique within the batch; it keys the page data during group
// dispatch, so a duplicate name would shadow an earlier file's content.
type InputFile struct {
	Name string
	Data []byte
}

// BatchResult is the complete outcome of one batch run.
type BatchResult struct {
	BatchID    uuid.UUID                  `json:"batchId"`
	Invoices   []models.NormalizedInvoice `json:"invoices"`
	Buckets    []report.VendorBucket      `json:"buckets"`
	Summary    report.Summary             `json:"summary"`
	StartedAt  time.Time                  `json:"startedAt"`
	FinishedAt time.Time                  `json:"finishedAt"`
}

// Engine wires the batch stages together. Analysis of independent page groups
// runs on a bounded worker pool; everything after the barrier is sequential.
type Engine struct {
	analyzer   docai.Analyzer
	grouper    *grouping.Grouper
	extractor  *extract.Extractor
	validator  *extract.Validator
	aggregator *report.Aggregator
	workers    int
	log        zerolog.Logger
}

// NewEngine creates a batch engine. workers <= 0 selects the default pool
// size.
func NewEngine(analyzer docai.Analyzer, workers int, log zerolog.Logger) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		analyzer:   analyzer,
		grouper:    grouping.NewGrouper(log),
		extractor:  extract.NewExtractor(log),
		validator:  extract.NewValidator(log),
		aggregator: report.NewAggregator(log),
		workers:    workers,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs one batch. Per-document failures never abort the batch: a
// group whose analysis fails yields a placeholder record and the rest of the
// batch continues. Cancelling the context stops dispatching new groups;
// groups not yet analyzed are reported as failed.
func (e *Engine) Process(ctx context.Context, files []InputFile) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, ErrNoProcessableInput
	}

	result := &BatchResult{
		BatchID:   uuid.New(),
		StartedAt: time.Now().UTC(),
	}

	dataByName := make(map[string][]byte, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		dataByName[f.Name] = f.Data
		names = append(names, f.Name)
	}

	groups := e.grouper.Group(names)

	e.log.Info().
		Str("batchId", result.BatchID.String()).
		Int("files", len(files)).
		Int("groups", len(groups)).
		Int("workers", e.workers).
		Msg("batch started")

	// One result slot per group keeps batch output in group order without
	// coordinating appends across workers.
	slots := make([][]models.NormalizedInvoice, len(groups))
	var docIndex atomic.Int64

	type job struct {
		slot  int
		group grouping.PageGroup
	}
	jobs := make(chan job, len(groups))
	for i, g := range groups {
		jobs <- job{slot: i, group: g}
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					slots[j.slot] = e.failGroup(j.group, err, &docIndex)
					continue
				}
				slots[j.slot] = e.processGroup(ctx, j.group, dataByName, &docIndex)
			}
		}()
	}
	wg.Wait()

	for _, records := range slots {
		result.Invoices = append(result.Invoices, records...)
	}
	result.Buckets = e.aggregator.Aggregate(result.Invoices)
	result.Summary = report.Summarize(result.Invoices)
	result.FinishedAt = time.Now().UTC()

	e.log.Info().
		Str("batchId", result.BatchID.String()).
		Int("invoices", len(result.Invoices)).
		Int("vendors", len(result.Buckets)).
		Int("failed", result.Summary.Failed).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("batch finished")

	return result, nil
}

// processGroup analyzes one page group and normalizes every document found in
// it. Analysis failure degrades to a single placeholder record for the group.
func (e *Engine) processGroup(ctx context.Context, group grouping.PageGroup, dataByName map[string][]byte, docIndex *atomic.Int64) []models.NormalizedInvoice {
	pages := make([][]byte, 0, len(group.Pages))
	for _, p := range group.Pages {
		pages = append(pages, dataByName[p.FileRef])
	}

	docs, err := e.analyzer.Analyze(ctx, pages, group.ID())
	if err != nil {
		e.log.Error().
			Err(err).
			Str("group", group.ID()).
			Msg("analysis failed, emitting placeholder record")
		return e.failGroup(group, err, docIndex)
	}
	// An analyzer that answers with zero documents and no error must not make
	// the group vanish from the batch output.
	if len(docs) == 0 {
		e.log.Error().
			Str("group", group.ID()).
			Msg("analysis returned no documents, emitting placeholder record")
		return e.failGroup(group, docai.ErrNoDocuments, docIndex)
	}

	records := make([]models.NormalizedInvoice, 0, len(docs))
	for i := range docs {
		inv := e.extractor.Extract(&docs[i], group.Pages[0].FileRef, int(docIndex.Add(1)-1))
		e.markGroup(&inv, group)
		records = append(records, e.validator.Validate(inv))
	}
	return records
}

func (e *Engine) failGroup(group grouping.PageGroup, cause error, docIndex *atomic.Int64) []models.NormalizedInvoice {
	inv := extract.Fallback(group.Pages[0].FileRef, int(docIndex.Add(1)-1), cause.Error())
	e.markGroup(&inv, group)
	return []models.NormalizedInvoice{e.validator.Validate(inv)}
}

// markGroup stamps the page-group metadata onto a record, including the full
// member file list so the batch summary can account for every input file.
func (e *Engine) markGroup(inv *models.NormalizedInvoice, group grouping.PageGroup) {
	inv.PageCount = len(group.Pages)
	inv.IsMultiPage = len(group.Pages) > 1
	if !inv.IsMultiPage {
		return
	}
	inv.PageGroupID = group.ID()
	inv.GroupFiles = make([]string, 0, len(group.Pages))
	for _, p := range group.Pages {
		inv.GroupFiles = append(inv.GroupFiles, p.FileRef)
	}
}

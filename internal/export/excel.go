// Package export renders vendor buckets into XLSX workbooks, one workbook per
// vendor: a sheet per invoice plus a summary sheet.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/facturaIA/invoice-report-service/internal/models"
	"github.com/facturaIA/invoice-report-service/internal/report"
)

const summarySheet = "RESUMEN GENERAL"

// Artifact is one generated workbook ready to store or send.
type Artifact struct {
	VendorKey string
	Filename  string
	Data      []byte
}

// Writer renders vendor buckets into workbooks.
type Writer struct {
	log zerolog.Logger
}

// NewWriter creates a workbook writer.
func NewWriter(log zerolog.Logger) *Writer {
	return &Writer{log: log.With().Str("component", "export").Logger()}
}

// WriteVendorWorkbooks renders one workbook per vendor bucket. A bucket whose
// rendering fails is skipped with an error log; the remaining vendors still
// export.
func (w *Writer) WriteVendorWorkbooks(buckets []report.VendorBucket) []Artifact {
	artifacts := make([]Artifact, 0, len(buckets))
	stamp := time.Now().Format("20060102_150405")

	for i := range buckets {
		bucket := &buckets[i]
		data, err := w.renderVendor(bucket)
		if err != nil {
			w.log.Error().Err(err).Str("vendor", bucket.Key).Msg("workbook rendering failed")
			continue
		}
		artifacts = append(artifacts, Artifact{
			VendorKey: bucket.Key,
			Filename:  fmt.Sprintf("Facturas_%s_%s.xlsx", sanitizeFilename(bucket.Key), stamp),
			Data:      data,
		})
		w.log.Info().
			Str("vendor", bucket.Key).
			Int("invoices", len(bucket.Invoices)).
			Int("bytes", len(data)).
			Msg("workbook generated")
	}
	return artifacts
}

func (w *Writer) renderVendor(bucket *report.VendorBucket) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i := range bucket.Invoices {
		name := fmt.Sprintf("Factura_%d", i+1)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		if err := w.renderInvoiceSheet(f, name, bucket, &bucket.Invoices[i], i+1); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	if err := w.renderSummarySheet(f, bucket); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}

	// Drop excelize's default sheet so the workbook opens on Factura_1.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if index, err := f.GetSheetIndex("Factura_1"); err == nil && index >= 0 {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Writer) renderInvoiceSheet(f *excelize.File, sheet string, bucket *report.VendorBucket, inv *models.NormalizedInvoice, ordinal int) error {
	row := 1
	write := func(values ...interface{}) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	write(fmt.Sprintf("FACTURA %d - %s", ordinal, bucket.VendorName))
	row++

	write("INFORMACION DEL VENDEDOR")
	write("Empresa:", inv.VendorName)
	write("CIF/NIF:", inv.VendorTaxID)
	write("Direccion:", inv.VendorAddress)
	row++

	write("INFORMACION DE LA FACTURA")
	write("Numero Factura:", inv.InvoiceID)
	write("Fecha Factura:", formatDate(inv.InvoiceDate))
	write("Archivo Origen:", inv.SourceFile)
	if inv.IsMultiPage {
		write("Paginas:", inv.PageCount)
	}
	row++

	write("DETALLE DE IMPUESTOS")
	write("Tipo de IVA", "Tasa", "Importe")
	taxTotal := decimal.Zero
	if len(inv.TaxDetails) == 0 {
		write("No se detectaron impuestos")
	}
	for _, tax := range inv.TaxDetails {
		label := "IVA"
		if inv.TaxInferred {
			label = "IVA (estimado)"
		}
		write(label, tax.Rate, amountCell(tax.Amount))
		taxTotal = taxTotal.Add(tax.Amount)
	}
	row++

	write("SUBTOTAL (sin impuestos):", "", amountCell(inv.InvoiceTotal.Sub(taxTotal)))
	write("TOTAL IMPUESTOS:", "", amountCell(taxTotal))
	write("TOTAL FACTURA:", "", amountCell(inv.InvoiceTotal))

	_ = f.SetColWidth(sheet, "A", "A", 25)
	_ = f.SetColWidth(sheet, "B", "B", 22)
	_ = f.SetColWidth(sheet, "C", "C", 15)
	return nil
}

func (w *Writer) renderSummarySheet(f *excelize.File, bucket *report.VendorBucket) error {
	row := 1
	write := func(values ...interface{}) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
		row++
	}

	taxTotal := decimal.Zero
	for _, amount := range bucket.TaxSummary {
		taxTotal = taxTotal.Add(amount)
	}

	write(fmt.Sprintf("RESUMEN GENERAL - %s", strings.ToUpper(bucket.VendorName)))
	row++

	write("ESTADISTICAS GENERALES")
	write("Total Facturas:", len(bucket.Invoices),
		"Total Importe:", amountCell(bucket.GrandTotal),
		"Total Impuestos:", amountCell(taxTotal),
		"Subtotal:", amountCell(bucket.GrandTotal.Sub(taxTotal)))
	row++

	write("RESUMEN DE IVA POR TASA")
	write("Tasa", "Importe Acumulado")
	for _, rate := range bucket.TaxRates() {
		write(rate, amountCell(bucket.TaxSummary[rate]))
	}
	row++

	write("DETALLE POR FACTURA")
	write("N Factura", "Fecha", "CIF/NIF", "Subtotal", "Total IVA", "TOTAL", "Tipos IVA", "Archivo")
	for i := range bucket.Invoices {
		inv := &bucket.Invoices[i]
		iva := inv.TaxTotal()
		write(inv.InvoiceID,
			formatDate(inv.InvoiceDate),
			inv.VendorTaxID,
			amountCell(inv.InvoiceTotal.Sub(iva)),
			amountCell(iva),
			amountCell(inv.InvoiceTotal),
			rateList(inv.TaxDetails),
			inv.SourceFile)
	}

	_ = f.SetColWidth(summarySheet, "A", "C", 20)
	_ = f.SetColWidth(summarySheet, "D", "F", 14)
	_ = f.SetColWidth(summarySheet, "G", "H", 28)
	return nil
}

// amountCell converts a decimal to the float excelize stores natively. The
// workbook is a human-facing report; exact decimal arithmetic already happened
// upstream.
func amountCell(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func rateList(details []models.TaxDetail) string {
	if len(details) == 0 {
		return "No IVA"
	}
	rates := make([]string, 0, len(details))
	for _, t := range details {
		rates = append(rates, t.Rate)
	}
	return strings.Join(rates, ", ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "No disponible"
	}
	return t.Format("2006-01-02")
}

// sanitizeFilename keeps vendor-derived filenames filesystem- and
// object-store-safe.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-', r == '.':
			b.WriteRune('_')
		}
	}
	s := b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "sin_nombre"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/models"
)

// FileStatus is the per-source-file outcome included in the batch summary.
type FileStatus struct {
	SourceFile string                `json:"sourceFile"`
	InvoiceID  string                `json:"invoiceId"`
	Tier       models.ConfidenceTier `json:"tier"`
	Failed     bool                  `json:"failed"`
	Error      string                `json:"error,omitempty"`
}

// Summary is the batch-level rollup: per-file statuses plus tier counts.
type Summary struct {
	Statuses []FileStatus    `json:"statuses"`
	Total    decimal.Decimal `json:"total"`

	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Enhanced  int `json:"enhanced"`
	Basic     int `json:"basic"`
	Low       int `json:"low"`
}

// Summarize builds the batch summary from the normalized records, in record
// order. A record counts as failed when extraction fell back to a placeholder
// with an error description. Every input file gets a status line: pages of a
// multi-page group beyond the first are listed under the invoice they
// contributed to (the counters stay per record).
func Summarize(invoices []models.NormalizedInvoice) Summary {
	s := Summary{Statuses: make([]FileStatus, 0, len(invoices))}
	listed := make(map[string]bool)

	for _, inv := range invoices {
		status := FileStatus{
			SourceFile: inv.SourceFile,
			InvoiceID:  inv.InvoiceID,
			Tier:       inv.ConfidenceTier,
			Failed:     inv.ErrorOriginal != "",
			Error:      inv.ErrorOriginal,
		}
		s.Statuses = append(s.Statuses, status)
		listed[inv.SourceFile] = true

		for _, file := range inv.GroupFiles {
			if listed[file] {
				continue
			}
			listed[file] = true
			s.Statuses = append(s.Statuses, FileStatus{
				SourceFile: file,
				InvoiceID:  inv.InvoiceID,
				Tier:       inv.ConfidenceTier,
				Failed:     status.Failed,
				Error:      inv.ErrorOriginal,
			})
		}

		if status.Failed {
			s.Failed++
		} else {
			s.Processed++
		}
		switch inv.ConfidenceTier {
		case models.TierEnhanced:
			s.Enhanced++
		case models.TierBasic:
			s.Basic++
		default:
			s.Low++
		}
		s.Total = s.Total.Add(inv.InvoiceTotal)
	}
	return s
}

// Lines renders the summary as human-readable lines for log output and the
// notification message.
func (s Summary) Lines() []string {
	lines := make([]string, 0, len(s.Statuses)+2)
	for _, st := range s.Statuses {
		if st.Failed {
			lines = append(lines, fmt.Sprintf("%s: fallo (%s)", st.SourceFile, st.Error))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s [%s]", st.SourceFile, st.InvoiceID, st.Tier))
	}
	lines = append(lines,
		fmt.Sprintf("procesadas %d, fallidas %d", s.Processed, s.Failed),
		fmt.Sprintf("confianza: %d enhanced, %d basic, %d low", s.Enhanced, s.Basic, s.Low),
	)
	return lines
}

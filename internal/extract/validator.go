package extract

import (
	"github.com/rs/zerolog"

	"github.com/facturaIA/invoice-report-service/internal/models"
)

// minKeyFields is how many genuinely extracted key fields (vendor name,
// invoice id, total) a record needs to count as valid.
const minKeyFields = 2

// Validator marks extraction quality on normalized records. It never drops a
// record: weak extractions are demoted and forwarded so the batch report stays
// complete.
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a validator that logs demotions through the given
// logger.
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{log: log.With().Str("component", "validate").Logger()}
}

// Validate sets IsValid on the record and demotes invalid records to the low
// tier. The record is returned in both cases.
func (v *Validator) Validate(inv models.NormalizedInvoice) models.NormalizedInvoice {
	keyFields := inv.KeyFieldCount()
	inv.IsValid = keyFields >= minKeyFields

	if !inv.IsValid {
		inv.ConfidenceTier = models.TierLow
		v.log.Warn().
			Str("sourceFile", inv.SourceFile).
			Str("invoiceId", inv.InvoiceID).
			Int("keyFields", keyFields).
			Msg("weak extraction kept with low confidence")
	}
	return inv
}

package extract

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/invoice-report-service/internal/models"
)

func TestValidate(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	tests := []struct {
		name      string
		inv       models.NormalizedInvoice
		wantValid bool
		wantTier  models.ConfidenceTier
	}{
		{
			name: "three key fields stays enhanced",
			inv: models.NormalizedInvoice{
				VendorName:     "Acme S.L.",
				InvoiceID:      "F-001",
				InvoiceTotal:   decimal.NewFromInt(121),
				ConfidenceTier: models.TierEnhanced,
			},
			wantValid: true,
			wantTier:  models.TierEnhanced,
		},
		{
			name: "two key fields stays basic",
			inv: models.NormalizedInvoice{
				VendorName:     "Acme S.L.",
				InvoiceID:      "FACT_120000_0",
				InvoiceTotal:   decimal.NewFromInt(121),
				ConfidenceTier: models.TierBasic,
			},
			wantValid: true,
			wantTier:  models.TierBasic,
		},
		{
			name: "one key field is demoted, not dropped",
			inv: models.NormalizedInvoice{
				VendorName:     models.PlaceholderVendorName,
				InvoiceID:      "FACT_120000_0",
				InvoiceTotal:   decimal.NewFromInt(50),
				ConfidenceTier: models.TierBasic,
			},
			wantValid: false,
			wantTier:  models.TierLow,
		},
		{
			name: "placeholder-only record is invalid",
			inv: models.NormalizedInvoice{
				VendorName:     models.PlaceholderVendorName,
				InvoiceID:      "ERROR_120000_1",
				InvoiceTotal:   decimal.Zero,
				ConfidenceTier: models.TierLow,
			},
			wantValid: false,
			wantTier:  models.TierLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.inv)
			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", got.IsValid, tt.wantValid)
			}
			if got.ConfidenceTier != tt.wantTier {
				t.Errorf("tier = %q, want %q", got.ConfidenceTier, tt.wantTier)
			}
		})
	}
}

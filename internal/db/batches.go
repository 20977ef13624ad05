package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/facturaIA/invoice-report-service/internal/models"
	"github.com/facturaIA/invoice-report-service/internal/pipeline"
)

// Archive persists processed batches and their normalized invoices.
type Archive struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewArchive creates an archive over the given pool.
func NewArchive(pool *pgxpool.Pool, log zerolog.Logger) *Archive {
	return &Archive{pool: pool, log: log.With().Str("component", "archive").Logger()}
}

// SaveBatch stores the batch header and every normalized invoice in one
// transaction, so a batch is never half-archived.
func (a *Archive) SaveBatch(ctx context.Context, result *pipeline.BatchResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO lotes (id, total_facturas, total_proveedores, fallidas, iniciado, finalizado)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, result.BatchID, len(result.Invoices), len(result.Buckets),
		result.Summary.Failed, result.StartedAt, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if err := a.saveInvoices(ctx, tx, result.BatchID, result.Invoices); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	a.log.Info().
		Str("batchId", result.BatchID.String()).
		Int("invoices", len(result.Invoices)).
		Msg("batch archived")
	return nil
}

func (a *Archive) saveInvoices(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, invoices []models.NormalizedInvoice) error {
	for i := range invoices {
		inv := &invoices[i]

		items, err := json.Marshal(inv.Items)
		if err != nil {
			return fmt.Errorf("failed to encode items for %s: %w", inv.InvoiceID, err)
		}
		taxes, err := json.Marshal(inv.TaxDetails)
		if err != nil {
			return fmt.Errorf("failed to encode tax details for %s: %w", inv.InvoiceID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO facturas_normalizadas (
				lote_id, numero_factura, nombre_proveedor, cif_proveedor,
				direccion_proveedor, fecha_factura, total, lineas, impuestos,
				iva_estimado, archivo_origen, paginas, confianza, valida, error_original
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, batchID, inv.InvoiceID, inv.VendorName, inv.VendorTaxID,
			inv.VendorAddress, nullableDate(inv), inv.InvoiceTotal, items, taxes,
			inv.TaxInferred, inv.SourceFile, inv.PageCount,
			string(inv.ConfidenceTier), inv.IsValid, inv.ErrorOriginal)
		if err != nil {
			return fmt.Errorf("failed to insert invoice %s: %w", inv.InvoiceID, err)
		}
	}
	return nil
}

// ArchivedInvoice is the reduced row returned by archive queries.
type ArchivedInvoice struct {
	BatchID    uuid.UUID `json:"batchId"`
	InvoiceID  string    `json:"invoiceId"`
	VendorName string    `json:"vendorName"`
	SourceFile string    `json:"sourceFile"`
	Confidence string    `json:"confidence"`
	Error      string    `json:"error,omitempty"`
}

// ListLowConfidence returns recently archived invoices that need manual
// review: low-tier or failed extractions.
func (a *Archive) ListLowConfidence(ctx context.Context, limit int) ([]ArchivedInvoice, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT lote_id, numero_factura, COALESCE(nombre_proveedor, ''),
		       COALESCE(archivo_origen, ''), confianza, COALESCE(error_original, '')
		FROM facturas_normalizadas
		WHERE confianza = 'low' OR error_original <> ''
		ORDER BY creado DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-confidence invoices: %w", err)
	}
	defer rows.Close()

	var out []ArchivedInvoice
	for rows.Next() {
		var inv ArchivedInvoice
		if err := rows.Scan(&inv.BatchID, &inv.InvoiceID, &inv.VendorName,
			&inv.SourceFile, &inv.Confidence, &inv.Error); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func nullableDate(inv *models.NormalizedInvoice) interface{} {
	if inv.InvoiceDate.IsZero() {
		return nil
	}
	return inv.InvoiceDate
}

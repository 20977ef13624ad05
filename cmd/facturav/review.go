package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/facturaIA/invoice-report-service/internal/config"
	"github.com/facturaIA/invoice-report-service/internal/db"
	"github.com/facturaIA/invoice-report-service/internal/logger"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Lista facturas archivadas con baja confianza que requieren revision manual",
		RunE:  runReview,
	}
	cmd.Flags().IntP("limit", "n", 50, "numero maximo de facturas a listar")
	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("no database configured, nothing to review")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Pretty)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	invoices, err := db.NewArchive(pool, log).ListLowConfidence(ctx, limit)
	if err != nil {
		return err
	}

	if len(invoices) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "sin facturas pendientes de revision")
		return nil
	}
	for _, inv := range invoices {
		line := fmt.Sprintf("%s  %-20s  %-30s  %s", inv.BatchID, inv.InvoiceID, inv.VendorName, inv.SourceFile)
		if inv.Error != "" {
			line += "  [" + inv.Error + "]"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

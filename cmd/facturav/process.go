package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/facturaIA/invoice-report-service/internal/config"
	"github.com/facturaIA/invoice-report-service/internal/db"
	"github.com/facturaIA/invoice-report-service/internal/docai"
	"github.com/facturaIA/invoice-report-service/internal/export"
	"github.com/facturaIA/invoice-report-service/internal/logger"
	"github.com/facturaIA/invoice-report-service/internal/notify"
	"github.com/facturaIA/invoice-report-service/internal/pipeline"
	"github.com/facturaIA/invoice-report-service/internal/storage"
)

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <fichero|directorio>...",
		Short: "Procesa un lote de facturas y genera un informe XLSX por proveedor",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runProcess,
	}
	cmd.Flags().StringP("output", "o", "", "directorio de salida para los informes (por defecto el de la configuracion)")
	cmd.Flags().String("provider", "", "proveedor de vision (openai|gemini), anula la configuracion")
	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
		cfg.AI.DefaultProvider = provider
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Output.Dir = out
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Pretty)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := collectInputFiles(args)
	if err != nil {
		return err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	analyzer := docai.NewVisionAnalyzer(provider, log)
	engine := pipeline.NewEngine(analyzer, cfg.Pipeline.Workers, log)

	result, err := engine.Process(ctx, files)
	if err != nil {
		return err
	}

	artifacts := export.NewWriter(log).WriteVendorWorkbooks(result.Buckets)
	if err := writeArtifacts(cfg.Output.Dir, artifacts); err != nil {
		return err
	}

	persistBatch(ctx, cfg, log, result, files, artifacts)

	notifier := notify.NewLogNotifier(log)
	if err := notifier.BatchFinished(ctx, result); err != nil {
		log.Error().Err(err).Msg("notification failed")
	}

	for _, line := range result.Summary.Lines() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "informes generados en %s (%d proveedores)\n",
		cfg.Output.Dir, len(artifacts))
	return nil
}

// persistBatch stores the batch in the object store and the archive when they
// are configured. Persistence failures are logged, never fatal: the reports
// are already on disk.
func persistBatch(ctx context.Context, cfg *config.Config, log zerolog.Logger, result *pipeline.BatchResult, files []pipeline.InputFile, artifacts []export.Artifact) {
	if cfg.Storage.Endpoint != "" {
		store, err := storage.New(ctx, cfg.Storage, log)
		if err != nil {
			log.Error().Err(err).Msg("object store unavailable, skipping uploads")
		} else {
			batchID := result.BatchID.String()
			for _, f := range files {
				if _, err := store.UploadSourceFile(ctx, batchID, f.Name, f.Data); err != nil {
					log.Error().Err(err).Str("file", f.Name).Msg("source upload failed")
				}
			}
			for _, art := range artifacts {
				if _, err := store.UploadReport(ctx, batchID, art.Filename, art.Data); err != nil {
					log.Error().Err(err).Str("file", art.Filename).Msg("report upload failed")
				}
			}
		}
	}

	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database.URL, log)
		if err != nil {
			log.Error().Err(err).Msg("database unavailable, batch not archived")
			return
		}
		defer pool.Close()

		if err := db.NewArchive(pool, log).SaveBatch(ctx, result); err != nil {
			log.Error().Err(err).Msg("batch archiving failed")
		}
	}
}

func buildProvider(cfg *config.Config) (docai.Provider, error) {
	switch cfg.AI.DefaultProvider {
	case "openai":
		if cfg.AI.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
		}
		return docai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL, cfg.AI.OpenAI.Model), nil
	case "gemini":
		if cfg.AI.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
		}
		return docai.NewGeminiProvider(cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.DefaultProvider)
	}
}

// collectInputFiles expands the arguments into the batch input: plain files
// are taken as-is, directories contribute their processable files one level
// deep.
func collectInputFiles(args []string) ([]pipeline.InputFile, error) {
	var files []pipeline.InputFile

	addFile := func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, pipeline.InputFile{Name: filepath.Base(path), Data: data})
		return nil
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			if err := addFile(arg); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !processableFile(entry.Name()) {
				continue
			}
			if err := addFile(filepath.Join(arg, entry.Name())); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

func processableFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf":
		return true
	default:
		return false
	}
}

func writeArtifacts(dir string, artifacts []export.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, art := range artifacts {
		path := filepath.Join(dir, art.Filename)
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Local runs keep secrets in .env; deployments set real environment
	// variables and have no such file.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "facturav",
		Short:         "Normaliza facturas escaneadas y genera informes por proveedor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "config.yaml", "ruta del fichero de configuracion")

	root.AddCommand(newProcessCmd())
	root.AddCommand(newReviewCmd())
	return root
}

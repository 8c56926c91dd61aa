package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/edgeshelf/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "edgeshelf",
	Short:   "Caching gateway for images and other stored objects",
	Long: `edgeshelf serves objects from a local or S3-compatible store through
an edge cache, with image transformation hints and long-lived cache headers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if f, _ := cmd.Flags().GetString("config"); f != "" {
			files = append(files, f)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}

		installLogger(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("origin", "", "origin store: local, s3 (default: local, env: EDGESHELF_ORIGIN_TYPE)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: EDGESHELF_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: edgeshelf.db, env: EDGESHELF_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: EDGESHELF_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint URL (env: EDGESHELF_S3_ENDPOINT)")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket (env: EDGESHELF_S3_BUCKET)")
	rootCmd.PersistentFlags().String("s3-prefix", "", "key prefix inside the S3 bucket (env: EDGESHELF_S3_PREFIX)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: EDGESHELF_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

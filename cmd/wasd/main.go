package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wallet-storage/was/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "wasd",
	Short:   "Wallet attached storage server",
	Long: `wasd is a wallet attached storage server. It stores resources inside
spaces owned by did:key identities and authenticates every mutating request
with HTTP Signatures.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var configFiles []string
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			configFiles = []string{path}
		}

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)

		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: memory, filesystem, sqlite, postgres, s3, dropbox, onedrive, gdrive (env: WAS_STORAGE_BACKEND)")
	rootCmd.PersistentFlags().String("storage-root", "", "data directory for the filesystem backend (env: WAS_STORAGE_ROOT)")
	rootCmd.PersistentFlags().String("storage-dsn", "", "connection string for the sqlite and postgres backends (env: WAS_STORAGE_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: WAS_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

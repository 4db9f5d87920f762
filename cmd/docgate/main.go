package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/docgate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "docgate",
	Short:   "Authenticated download gateway for OCI Object Storage",
	Long: `docgate exposes objects from a private OCI Object Storage bucket to
clients holding a shared bearer token. Outbound requests are signed with
an API key from the credential chain or go through a cached
pre-authenticated request.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable; later files override earlier ones (default: ./docgate.yaml)")
	rootCmd.PersistentFlags().String("env", "", "environment: dev or prod (env: DOCGATE_ENV)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: DOCGATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("endpoint", "", "object storage endpoint, overrides --region (env: DOCGATE_BACKEND_ENDPOINT)")
	rootCmd.PersistentFlags().String("region", "", "object storage region (env: DOCGATE_BACKEND_REGION)")
	rootCmd.PersistentFlags().String("namespace", "", "object storage namespace (env: DOCGATE_BACKEND_NAMESPACE)")
	rootCmd.PersistentFlags().String("bucket", "", "bucket name (env: DOCGATE_BACKEND_BUCKET)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

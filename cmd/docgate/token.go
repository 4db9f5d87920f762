package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/docgate/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain a scoped token and print its expiry",
	Long: `Obtain a pre-authenticated request for the configured bucket, the same
way serve does with signing.strategy=scoped. When a token store is
configured an unexpired stored token is reused and a fresh one is saved.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var (
	tokenForce   bool
	tokenShowURI bool
)

func init() {
	tokenCmd.Flags().BoolVar(&tokenForce, "force", false, "create a new token even if a valid one is cached")
	tokenCmd.Flags().BoolVar(&tokenShowURI, "show-uri", false, "print the access URI (grants read access to the bucket)")
	tokenCmd.Flags().String("store-type", "", "scoped token store: none, sqlite, postgres (env: DOCGATE_TOKEN_STORE_TYPE)")
	tokenCmd.Flags().String("store-dsn", "", "scoped token store connection string (env: DOCGATE_TOKEN_STORE_DSN)")

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	deps, err := buildBackendDeps(cfg, nil)
	if err != nil {
		return err
	}

	cache, cleanup, err := buildTokenCache(cmd.Context(), cfg, deps, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	token, err := cache.Get(cmd.Context(), tokenForce)
	if err != nil {
		return fmt.Errorf("get scoped token: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Bucket:     %s\n", deps.bucket)
	_, _ = fmt.Fprintf(out, "Token ID:   %s\n", token.ID)
	if !token.IssuedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "Issued at:  %s\n", token.IssuedAt.Format(time.RFC3339))
	}
	if token.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintln(out, "Expires at: unknown")
	} else {
		_, _ = fmt.Fprintf(out, "Expires at: %s (in %s)\n",
			token.ExpiresAt.Format(time.RFC3339), time.Until(token.ExpiresAt).Round(time.Second))
	}
	if tokenShowURI {
		_, _ = fmt.Fprintf(out, "Access URI: %s\n", token.AccessURI)
	}

	return nil
}

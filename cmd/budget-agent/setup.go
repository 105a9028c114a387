package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwojci/budget-agent/pkg/client"
	"github.com/jwojci/budget-agent/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Authorize Google API access interactively",
	Long: `Runs the OAuth consent flow in the browser and caches the token for
the run and bot commands. Requires ` + config.ClientSecretFile + ` from the
Google Cloud console in the working directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if _, err := client.New(cfg.CredentialsFile, config.TokenFile, true, scopes...); err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}

		fmt.Println("Authorization complete. Token saved to", config.TokenFile)
		return nil
	},
}

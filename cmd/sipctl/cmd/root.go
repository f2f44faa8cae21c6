package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/cmd/auth"
	"github.com/coresistem/sip-api-sub000/cmd/sipctl/cmd/role"
	"github.com/coresistem/sip-api-sub000/cmd/sipctl/cmd/whoami"
	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/client"
	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
)

var (
	serverURL      string
	nonInteractive bool
	bearerToken    string
)

var rootCmd = &cobra.Command{
	Use:   "sipctl",
	Short: "SIP CLI - club and federation administration client",
	Long: `sipctl is the command-line client for SIP, the club and federation
administration platform. Use it to manage your session, switch between
the roles you hold, and (as an operator) simulate other identities.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("SIP_NON_INTERACTIVE") == "1" {
			nonInteractive = true
		}
		if env := os.Getenv("SIP_SERVER"); env != "" && !cmd.Root().PersistentFlags().Changed("server") {
			serverURL = env
		}

		provider := client.NewProvider(serverURL)
		if bearerToken != "" {
			provider.SetBearerToken(bearerToken)
		}

		cfg := &config.GlobalConfig{
			ServerURL:      serverURL,
			NonInteractive: nonInteractive,
			Provider:       provider,
		}
		cmd.SetContext(config.InjectConfig(cmd.Context(), cfg))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "SIP API server URL (also set via SIP_SERVER)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Disable interactive prompts (also set via SIP_NON_INTERACTIVE=1)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "Ephemeral bearer token, bypasses the credential store")
	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(role.RoleCmd)
	rootCmd.AddCommand(whoami.WhoamiCmd)
}

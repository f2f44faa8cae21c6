package auth

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out from SIP",
	Long: `Notifies the server (best effort) and removes the stored token pair,
the active-role preference and any simulation state. Local logout
succeeds even when the server cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		sess, err := cfg.Provider.Session()
		if err != nil {
			return err
		}

		if err := sess.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		pterm.Success.Println("Logged out")
		return nil
	},
}

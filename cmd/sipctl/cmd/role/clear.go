package role

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Return to the account's primary role",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		sess, err := cfg.Provider.ResolvedSession(cmd.Context())
		if err != nil {
			return err
		}
		if sess.User() == nil {
			return fmt.Errorf("not logged in; run `sipctl auth login`")
		}
		if err := sess.ClearActiveRole(); err != nil {
			return err
		}
		pterm.Success.Println("Role switch cleared")
		return nil
	},
}

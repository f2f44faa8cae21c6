package role

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

var switchCmd = &cobra.Command{
	Use:   "switch <ROLE>",
	Short: "Act under a different entitled role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		sess, err := cfg.Provider.ResolvedSession(cmd.Context())
		if err != nil {
			return err
		}
		user := sess.User()
		if user == nil {
			return fmt.Errorf("not logged in; run `sipctl auth login`")
		}

		target := sdk.Role(strings.ToUpper(args[0]))
		if !user.HasRole(target) {
			pterm.Warning.Printf("Account is not entitled to %s; the server will reject role-scoped requests\n", target)
		}
		if err := sess.SwitchRole(target); err != nil {
			return err
		}
		pterm.Success.Printf("Now acting as %s\n", target)
		if sipID := user.SipIDs[target]; sipID != "" {
			pterm.Info.Printf("SIP id for this role: %s\n", sipID)
		}
		return nil
	},
}

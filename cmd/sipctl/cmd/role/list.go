package role

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the roles the account is entitled to",
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

		active := sess.ActiveRole()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tSIP ID\tSTATUS\t")
		for _, r := range user.Roles {
			marker := ""
			if r == active {
				marker = "ACTIVE"
			} else if r == user.Role {
				marker = "PRIMARY"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r, user.SipIDs[r], user.RoleStatuses[r], marker)
		}
		return w.Flush()
	},
}

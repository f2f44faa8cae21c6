// Package role manages which of the account's entitled roles the
// session acts under.
package role

import (
	"github.com/spf13/cobra"
)

var RoleCmd = &cobra.Command{
	Use:   "role",
	Short: "Inspect and switch the active role",
}

func init() {
	RoleCmd.AddCommand(listCmd)
	RoleCmd.AddCommand(switchCmd)
	RoleCmd.AddCommand(clearCmd)
}

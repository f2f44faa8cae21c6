// Package whoami reports the effective identity the current session
// resolves to, including role switches and operator simulation.
package whoami

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

var (
	simulateRole string
	simulateUser string
)

var WhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the effective user for the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateRole != "" && simulateUser != "" {
			return fmt.Errorf("--simulate-role and --simulate-user are mutually exclusive")
		}

		cfg := config.MustFromContext(cmd.Context())
		sess, err := cfg.Provider.ResolvedSession(cmd.Context())
		if err != nil {
			return err
		}
		if sess.User() == nil {
			return fmt.Errorf("not logged in; run `sipctl auth login`")
		}

		if simulateRole != "" {
			sess.SetSimulatedRole(cmd.Context(), sdk.Role(strings.ToUpper(simulateRole)))
		}
		if simulateUser != "" {
			sess.SetSimulatedSipID(cmd.Context(), simulateUser)
		}

		eff := sess.EffectiveUser()
		if eff == nil {
			return fmt.Errorf("no effective user resolved")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tCLUB\tSIP ID")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			eff.ID, eff.Name, eff.Email, eff.Role, eff.ClubID, eff.SipID)
		w.Flush()

		simRole, simSipID := sess.Simulation()
		pterm.Info.Println(describeDerivation(sess.User(), sess.ActiveRole(), simRole, simSipID))
		return nil
	},
}

func init() {
	WhoamiCmd.Flags().StringVar(&simulateRole, "simulate-role", "", "resolve identity as if simulating the given role (operators only, not persisted)")
	WhoamiCmd.Flags().StringVar(&simulateUser, "simulate-user", "", "resolve identity as if simulating the user with the given SIP id (operators only, not persisted)")
}

// describeDerivation explains which layer produced the effective user,
// mirroring the precedence the SDK applies: simulation beats role
// switch, role switch beats the base identity.
func describeDerivation(base *sdk.User, active, simRole sdk.Role, simSipID string) string {
	if base == nil {
		return "no identity"
	}
	if base.Role == sdk.RoleAdmin {
		if simSipID != "" {
			return fmt.Sprintf("simulating user %s", simSipID)
		}
		if simRole != "" {
			return fmt.Sprintf("simulating role %s", simRole)
		}
	}
	if active != "" && active != base.Role {
		return fmt.Sprintf("acting as %s via role switch", active)
	}
	return fmt.Sprintf("base identity (%s)", base.Role)
}

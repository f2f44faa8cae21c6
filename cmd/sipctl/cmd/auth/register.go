package auth

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

var registerInput sdk.RegisterInput

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a SIP account",
	Long: `Creates a new account on the SIP server and opens a session for it,
with the same credential storage side effects as login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		if registerInput.Email == "" || registerInput.Password == "" || registerInput.Name == "" {
			return fmt.Errorf("--email, --password and --name are required")
		}

		sess, err := cfg.Provider.Session()
		if err != nil {
			return err
		}

		user, err := sess.Register(cmd.Context(), registerInput)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		pterm.Success.Printf("Account created for %s (%s)\n", user.Name, user.Email)
		pterm.Info.Printf("Role: %s\n", user.Role)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerInput.Email, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerInput.Password, "password", "", "Account password")
	registerCmd.Flags().StringVar(&registerInput.Name, "name", "", "Full name")
	registerCmd.Flags().StringVar(&registerInput.ClubID, "club", "", "Club ID to join (optional)")
}

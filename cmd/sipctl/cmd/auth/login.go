package auth

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with SIP",
	Long: `Authenticates against the SIP server with your email and password and
stores the resulting token pair for subsequent commands.

Email and password can be passed as flags; in interactive mode missing
values are prompted for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		email, password := loginEmail, loginPassword
		if email == "" {
			if cfg.NonInteractive {
				return fmt.Errorf("--email is required in non-interactive mode")
			}
			value, err := pterm.DefaultInteractiveTextInput.Show("Email")
			if err != nil {
				return err
			}
			email = strings.TrimSpace(value)
		}
		if password == "" {
			if cfg.NonInteractive {
				return fmt.Errorf("--password is required in non-interactive mode")
			}
			value, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
			if err != nil {
				return err
			}
			password = value
		}

		sess, err := cfg.Provider.Session()
		if err != nil {
			return err
		}

		user, err := sess.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		pterm.Success.Printf("Logged in as %s (%s)\n", user.Name, user.Email)
		pterm.Info.Printf("Primary role: %s\n", user.Role)
		if len(user.Roles) > 1 {
			roles := make([]string, 0, len(user.Roles))
			for _, r := range user.Roles {
				roles = append(roles, string(r))
			}
			pterm.Info.Printf("Entitled roles: %s (use `sipctl role switch` to change)\n", strings.Join(roles, ", "))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
}

package auth

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coresistem/sip-api-sub000/cmd/sipctl/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		// Stored credential is best effort: with an ephemeral --token the
		// file store may be empty while the session still resolves.
		if store, err := cfg.Provider.Store(); err == nil {
			if creds, err := store.Load(); err == nil {
				pterm.DefaultSection.Println("Stored Credential")
				printTokenClaims(creds.AccessToken)
			}
		}

		sess, err := cfg.Provider.ResolvedSession(cmd.Context())
		if err != nil {
			return err
		}
		user := sess.User()
		if user == nil {
			return fmt.Errorf("not logged in; run `sipctl auth login`")
		}

		pterm.DefaultSection.Println("Identity")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tCLUB\tSIP ID")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			user.ID, user.Name, user.Email, user.Role, user.ClubID, user.SipID)
		w.Flush()

		if role := sess.ActiveRole(); role != "" && role != user.Role {
			pterm.Info.Printf("Acting as %s via role switch\n", role)
		}
		return nil
	},
}

// printTokenClaims decodes the access token for display when it happens
// to be a JWT. No verification: the backend owns token validity, this is
// purely informational.
func printTokenClaims(accessToken string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		pterm.Info.Println("Opaque access token stored")
		return
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		pterm.Info.Printf("Token subject: %s\n", sub)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if exp.Before(time.Now()) {
			pterm.Warning.Printf("Access token expired at %s (will refresh on next use)\n", exp.Format(time.RFC1123))
		} else {
			pterm.Info.Printf("Access token expires at %s\n", exp.Format(time.RFC1123))
		}
	}
}

package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/session"
	"github.com/felixgeelhaar/calsync/internal/tui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var profileShowCmd = gate(&cobra.Command{
	Use:   "show",
	Short: "Show your profile as the backend has it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		var user session.User
		err = tui.WithSpinner(cmd.Context(), "Loading profile...", func(ctx context.Context) error {
			u, err := a.auth.RefreshProfile(ctx)
			user = u
			return err
		})
		if err != nil {
			return err
		}
		return a.print(statusView{State: a.auth.State().String(), User: &user, BaseURL: a.client.BaseURL()})
	},
}, "session")

var profileUpdateCmd = gate(&cobra.Command{
	Use:   "update",
	Short: "Change your name, email or departments",
	Long: `Change profile fields. Only the flags you pass are sent.

Examples:
  calsync profile update --first-name Jane
  calsync profile update --departments "IT, HR"`,
	Args: cobra.NoArgs,
	RunE: runProfileUpdate,
}, "session")

func init() {
	profileUpdateCmd.Flags().String("first-name", "", "new first name")
	profileUpdateCmd.Flags().String("last-name", "", "new last name")
	profileUpdateCmd.Flags().String("email", "", "new email")
	profileUpdateCmd.Flags().String("departments", "", "comma separated departments")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	var update api.ProfileUpdate
	update.FirstName, _ = flags.GetString("first-name")
	update.LastName, _ = flags.GetString("last-name")
	update.Email, _ = flags.GetString("email")
	if depts, _ := flags.GetString("departments"); depts != "" {
		update.Department = strings.Join(tui.ParseList(depts), ", ")
	}

	user, err := a.auth.UpdateProfile(cmd.Context(), update)
	if err != nil {
		return err
	}
	return a.print(statusView{State: a.auth.State().String(), User: &user, BaseURL: a.client.BaseURL()})
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/guard"
	"github.com/felixgeelhaar/calsync/internal/session"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List user accounts (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var usersListCmd = gate(&cobra.Command{
	Use:   "list",
	Short: "List every account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		users, err := a.client.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		return a.print(userList(users))
	},
}, string(guard.PermissionAdmin))

func init() {
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(usersCmd)
}

type userList []session.User

func (l userList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l))
	for _, u := range l {
		rows = append(rows, []string{
			u.ID.String(),
			u.FullName(),
			u.Email,
			string(u.Role),
			strings.Join(u.Departments(), ", "),
			yesNo(u.CanCreateEvents || u.IsAdmin()),
		})
	}
	return []string{"ID", "NAME", "EMAIL", "ROLE", "DEPARTMENTS", "CAN CREATE"}, rows
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/guard"
)

var departmentsCmd = &cobra.Command{
	Use:     "departments",
	Aliases: []string{"department", "dept"},
	Short:   "List and manage departments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// listing needs no session; signup offers the same list
var departmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List departments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		depts, err := a.client.ListDepartments(cmd.Context())
		if err != nil {
			return err
		}
		return a.print(departmentList(depts))
	},
}

var departmentsCreateCmd = gate(&cobra.Command{
	Use:   "create <name>",
	Short: "Add a department (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.NewValidationFailure("name", "Department name required")
		}
		if err := a.client.CreateDepartment(cmd.Context(), name); err != nil {
			return err
		}
		return a.print(message{Message: fmt.Sprintf("Department %q added.", name)})
	},
}, string(guard.PermissionAdmin))

var departmentsDeleteCmd = gate(&cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a department (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ok, err := confirmed(cmd, fmt.Sprintf("Remove department %d?", id))
		if err != nil {
			return err
		}
		if !ok {
			return a.print(message{Message: "Nothing deleted."})
		}
		if err := a.client.DeleteDepartment(cmd.Context(), id); err != nil {
			return err
		}
		return a.print(message{Message: fmt.Sprintf("Department %d removed.", id)})
	},
}, string(guard.PermissionAdmin))

func init() {
	withYesFlag(departmentsDeleteCmd)

	departmentsCmd.AddCommand(departmentsListCmd, departmentsCreateCmd, departmentsDeleteCmd)
	rootCmd.AddCommand(departmentsCmd)
}

type departmentList []api.Department

func (l departmentList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l))
	for _, d := range l {
		rows = append(rows, []string{strconv.FormatInt(d.ID, 10), d.Name})
	}
	return []string{"ID", "NAME"}, rows
}

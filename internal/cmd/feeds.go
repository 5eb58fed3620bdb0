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

var feedsCmd = &cobra.Command{
	Use:     "feeds",
	Aliases: []string{"feed"},
	Short:   "Read and post department announcements",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var feedsListCmd = gate(&cobra.Command{
	Use:   "list",
	Short: "List announcements, newest first",
	Long: `List department announcements. Without --department every
announcement is listed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		dept, _ := cmd.Flags().GetString("department")
		feeds, err := a.client.ListDepartmentFeeds(cmd.Context(), strings.TrimSpace(dept))
		if err != nil {
			return err
		}
		return a.print(feedList(feeds))
	},
}, "session")

var feedsCreateCmd = gate(&cobra.Command{
	Use:   "create",
	Short: "Post an announcement to a department (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFor(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		var feed api.NewDepartmentFeed
		feed.Title, _ = flags.GetString("title")
		feed.Content, _ = flags.GetString("content")
		feed.Department, _ = flags.GetString("department")
		feed.Title = strings.TrimSpace(feed.Title)
		feed.Content = strings.TrimSpace(feed.Content)
		feed.Department = strings.TrimSpace(feed.Department)
		if feed.Title == "" || feed.Content == "" || feed.Department == "" {
			return errors.NewValidationFailure("", "All fields are required")
		}

		if err := a.client.CreateDepartmentFeed(cmd.Context(), feed); err != nil {
			return err
		}
		return a.print(message{Message: fmt.Sprintf("Posted to %s.", feed.Department)})
	},
}, string(guard.PermissionAdmin))

var feedsDeleteCmd = gate(&cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an announcement (admin)",
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
		ok, err := confirmed(cmd, fmt.Sprintf("Remove announcement %d?", id))
		if err != nil {
			return err
		}
		if !ok {
			return a.print(message{Message: "Nothing deleted."})
		}
		if err := a.client.DeleteDepartmentFeed(cmd.Context(), id); err != nil {
			return err
		}
		return a.print(message{Message: fmt.Sprintf("Announcement %d removed.", id)})
	},
}, string(guard.PermissionAdmin))

func init() {
	feedsListCmd.Flags().String("department", "", "only this department")

	feedsCreateCmd.Flags().String("title", "", "announcement title")
	feedsCreateCmd.Flags().String("content", "", "announcement text")
	feedsCreateCmd.Flags().String("department", "", "department to post to")

	withYesFlag(feedsDeleteCmd)

	feedsCmd.AddCommand(feedsListCmd, feedsCreateCmd, feedsDeleteCmd)
	rootCmd.AddCommand(feedsCmd)
}

type feedList []api.DepartmentFeed

func (l feedList) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l))
	for _, f := range l {
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.Department,
			f.Title,
			f.Content,
			f.CreatedAt,
		})
	}
	return []string{"ID", "DEPARTMENT", "TITLE", "CONTENT", "POSTED"}, rows
}

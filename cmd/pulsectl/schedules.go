package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"PulseMail/internal/schedule"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect scheduled emails",
}

func init() {
	schedulesCmd.AddCommand(schedulesListCmd)
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active schedules",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		views, err := store.GetActiveSchedules(context.Background())
		if err != nil {
			return err
		}
		if len(views) == 0 {
			fmt.Println("No active schedules.")
			return nil
		}

		fmt.Printf("%-6s %-20s %-16s %-28s %-6s %-20s\n", "ID", "Name", "Template", "Rule", "Rcpt", "Next Run")
		fmt.Println(strings.Repeat("-", 101))
		for _, v := range views {
			rule := "invalid: " + fmt.Sprint(v.Problem)
			if v.Problem == nil {
				rule = schedule.Describe(v.Spec)
			}
			next := ""
			if v.NextRun != nil {
				next = v.NextRun.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-6d %-20s %-16s %-28s %-6d %-20s\n",
				v.ID, truncStr(v.Name, 19), truncStr(v.TemplateName, 15), truncStr(rule, 27), len(v.Recipients), next)
		}
		return nil
	},
}

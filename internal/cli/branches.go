package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/branches/")
			if err != nil {
				return fmt.Errorf("list branches: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No branches found.")
				return nil
			}

			fmt.Printf("%-16s  %-24s  %8s  %14s  %8s\n", "ID", "NAME", "QUEUES", "SERVICE POINTS", "WAITING")
			fmt.Printf("%-16s  %-24s  %8s  %14s  %8s\n", "----", "-----", "------", "--------------", "-------")
			for _, b := range data {
				id, _ := b["id"].(string)
				name, _ := b["name"].(string)
				queues, _ := b["queues"].(float64)
				points, _ := b["service_points"].(float64)
				waiting, _ := b["waiting_visits"].(float64)
				fmt.Printf("%-16s  %-24s  %8d  %14d  %8d\n", id, name, int(queues), int(points), int(waiting))
			}

			return nil
		},
	}
}

func newQueuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queues <branch_id>",
		Short: "List the queues of a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID := args[0]

			resp, err := client.Get("/api/v1/branches/" + branchID + "/queues/")
			if err != nil {
				return fmt.Errorf("list queues: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No queues found.")
				return nil
			}

			fmt.Printf("%-16s  %-24s  %-8s  %8s\n", "ID", "NAME", "PREFIX", "WAITING")
			fmt.Printf("%-16s  %-24s  %-8s  %8s\n", "----", "-----", "------", "-------")
			for _, q := range data {
				id, _ := q["id"].(string)
				name, _ := q["name"].(string)
				prefix, _ := q["ticket_prefix"].(string)
				waiting, _ := q["waiting_visits"].(float64)
				fmt.Printf("%-16s  %-24s  %-8s  %8d\n", id, name, prefix, int(waiting))
			}

			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVisitCmd() *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "visit <branch_id> <visit_id>",
		Short: "Show a visit and its history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, visitID := args[0], args[1]

			resp, err := client.Get("/api/v1/branches/" + branchID + "/visits/" + visitID)
			if err != nil {
				return fmt.Errorf("get visit: %w", err)
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			ticket, _ := data["ticket"].(string)
			status, _ := data["status"].(string)

			fmt.Printf("Visit: %s\n", visitID)
			fmt.Printf("  Ticket: %s\n", ticket)
			fmt.Printf("  Status: %s\n", status)
			if queueID, ok := data["queue_id"].(string); ok && queueID != "" {
				fmt.Printf("  Queue:  %s\n", queueID)
			}
			if spID, ok := data["service_point_id"].(string); ok && spID != "" {
				fmt.Printf("  Point:  %s\n", spID)
			}
			if svc, ok := data["current_service"].(map[string]any); ok {
				name, _ := svc["name"].(string)
				fmt.Printf("  Service: %s\n", name)
			}
			if createdAt, ok := data["created_at"].(string); ok {
				fmt.Printf("  Created: %s\n", createdAt)
			}
			if endedAt, ok := data["ended_at"].(string); ok && endedAt != "" {
				fmt.Printf("  Ended:   %s\n", endedAt)
			}

			if !showEvents {
				return nil
			}

			evResp, err := client.Get("/api/v1/branches/" + branchID + "/visits/" + visitID + "/events")
			if err != nil {
				return fmt.Errorf("get visit events: %w", err)
			}

			var events []map[string]any
			if err := json.Unmarshal(evResp.Data, &events); err != nil {
				return fmt.Errorf("parse events: %w", err)
			}

			fmt.Println("  Events:")
			for _, ev := range events {
				evType, _ := ev["event_type"].(string)
				at, _ := ev["at"].(string)
				fmt.Printf("    - %-32s %s\n", evType, at)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showEvents, "events", false, "Include the visit's event history")

	return cmd
}

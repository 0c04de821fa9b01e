package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTicketCmd() *cobra.Command {
	var (
		ruleID string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "ticket <branch_id> <service_id>",
		Short: "Issue a ticket for a service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, serviceID := args[0], args[1]

			body := map[string]any{"service_id": serviceID}
			if ruleID != "" {
				body["rule_id"] = ruleID
			}
			if len(params) > 0 {
				kv := make(map[string]string, len(params))
				for _, p := range params {
					key, value, ok := strings.Cut(p, "=")
					if !ok {
						return fmt.Errorf("invalid --param %q, want key=value", p)
					}
					kv[key] = value
				}
				body["params"] = kv
			}

			resp, err := client.Post("/api/v1/branches/"+branchID+"/visits", body)
			if err != nil {
				return fmt.Errorf("create visit: %w", err)
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			ticket, _ := data["ticket"].(string)
			id, _ := data["id"].(string)
			queueID, _ := data["queue_id"].(string)

			fmt.Printf("Ticket issued: %s\n", ticket)
			fmt.Printf("  Visit: %s\n", id)
			fmt.Printf("  Queue: %s\n", queueID)

			return nil
		},
	}

	cmd.Flags().StringVar(&ruleID, "rule", "", "Segmentation rule ID to route the visit with")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Visit parameter as key=value (repeatable)")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTransferCmd() *cobra.Command {
	var (
		queueID      string
		userID       string
		pointID      string
		delaySeconds int
		toStart      bool
	)

	cmd := &cobra.Command{
		Use:   "transfer <branch_id> <visit_id>",
		Short: "Transfer a waiting visit to a queue or pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, visitID := args[0], args[1]

			var target string
			body := map[string]any{}
			switch {
			case queueID != "":
				target = "queue"
				body["queue_id"] = queueID
			case userID != "":
				target = "user-pool"
				body["user_id"] = userID
			case pointID != "":
				target = "service-point-pool"
				body["service_point_id"] = pointID
			default:
				return fmt.Errorf("one of --queue, --user or --service-point is required")
			}
			if delaySeconds > 0 {
				body["delay_seconds"] = delaySeconds
			}
			if toStart {
				body["to_start"] = true
			}

			resp, err := client.Post("/api/v1/branches/"+branchID+"/visits/"+visitID+"/transfer/"+target, body)
			if err != nil {
				return fmt.Errorf("transfer visit: %w", err)
			}
			return printVisitLine("Transferred", resp.Data)
		},
	}

	cmd.Flags().StringVar(&queueID, "queue", "", "Destination queue ID")
	cmd.Flags().StringVar(&userID, "user", "", "Destination user pool (user ID)")
	cmd.Flags().StringVar(&pointID, "service-point", "", "Destination service point pool (service point ID)")
	cmd.Flags().IntVar(&delaySeconds, "delay", 0, "Seconds before the visit is callable again")
	cmd.Flags().BoolVar(&toStart, "to-start", false, "Place the visit at the head of the destination queue")

	return cmd
}

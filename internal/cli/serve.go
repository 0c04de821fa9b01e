package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// printVisitLine prints the one-line ticket summary most service point
// commands answer with.
func printVisitLine(label string, data json.RawMessage) error {
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	ticket, _ := v["ticket"].(string)
	id, _ := v["id"].(string)
	status, _ := v["status"].(string)
	fmt.Printf("%s: %s (%s, %s)\n", label, ticket, id, status)
	return nil
}

func spPath(branchID, spID, action string) string {
	return "/api/v1/branches/" + branchID + "/service-points/" + spID + "/" + action
}

func newCallCmd() *cobra.Command {
	var queueIDs []string

	cmd := &cobra.Command{
		Use:   "call <branch_id> <service_point_id>",
		Short: "Call the next visit to a service point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, spID := args[0], args[1]

			var body any
			if len(queueIDs) > 0 {
				body = map[string]any{"queue_ids": queueIDs}
			}

			resp, err := client.Post(spPath(branchID, spID, "call-next"), body)
			if err != nil {
				return fmt.Errorf("call next: %w", err)
			}
			if len(resp.Data) == 0 {
				fmt.Println("No visits waiting.")
				return nil
			}

			return printVisitLine("Called", resp.Data)
		},
	}

	cmd.Flags().StringArrayVar(&queueIDs, "queue", nil, "Restrict the call to a queue ID (repeatable)")

	return cmd
}

func newRecallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recall <branch_id> <service_point_id>",
		Short: "Announce the called visit again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(spPath(args[0], args[1], "recall"), nil)
			if err != nil {
				return fmt.Errorf("recall: %w", err)
			}
			return printVisitLine("Recalled", resp.Data)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <branch_id> <service_point_id>",
		Short: "Start serving the called visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(spPath(args[0], args[1], "start-serving"), nil)
			if err != nil {
				return fmt.Errorf("start serving: %w", err)
			}
			return printVisitLine("Serving", resp.Data)
		},
	}
}

func newFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish <branch_id> <service_point_id>",
		Short: "Finish serving the current visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(spPath(args[0], args[1], "stop-serving"), nil)
			if err != nil {
				return fmt.Errorf("stop serving: %w", err)
			}
			return printVisitLine("Finished", resp.Data)
		},
	}
}

func newNoShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "noshow <branch_id> <service_point_id>",
		Short: "Mark the called visit as a no-show",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(spPath(args[0], args[1], "no-show"), nil)
			if err != nil {
				return fmt.Errorf("no-show: %w", err)
			}
			return printVisitLine("No-show", resp.Data)
		},
	}
}

func newBackCmd() *cobra.Command {
	var (
		target       string
		delaySeconds int
		toStart      bool
	)

	cmd := &cobra.Command{
		Use:   "back <branch_id> <service_point_id>",
		Short: "Send the visit at a service point back to wait",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, spID := args[0], args[1]

			switch target {
			case "queue", "user-pool", "service-point-pool":
			default:
				return fmt.Errorf("invalid --to %q, want queue, user-pool or service-point-pool", target)
			}

			body := map[string]any{}
			if delaySeconds > 0 {
				body["delay_seconds"] = delaySeconds
			}
			if toStart {
				body["to_start"] = true
			}

			resp, err := client.Post(spPath(branchID, spID, "back/"+target), body)
			if err != nil {
				return fmt.Errorf("back to %s: %w", target, err)
			}
			return printVisitLine("Returned", resp.Data)
		},
	}

	cmd.Flags().StringVar(&target, "to", "queue", "Where to return the visit (queue, user-pool, service-point-pool)")
	cmd.Flags().IntVar(&delaySeconds, "delay", 0, "Seconds before the visit is callable again")
	cmd.Flags().BoolVar(&toStart, "to-start", false, "Place the visit at the head of its queue")

	return cmd
}

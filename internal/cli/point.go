package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOpenCmd() *cobra.Command {
	var (
		userID        string
		workProfileID string
	)

	cmd := &cobra.Command{
		Use:   "open <branch_id> <service_point_id>",
		Short: "Open a service point for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, spID := args[0], args[1]

			_, err := client.Post("/api/v1/branches/"+branchID+"/service-points/"+spID+"/open", map[string]any{
				"user_id":         userID,
				"work_profile_id": workProfileID,
			})
			if err != nil {
				return fmt.Errorf("open service point: %w", err)
			}

			fmt.Printf("Service point %s opened by %s (profile %s)\n", spID, userID, workProfileID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID taking the service point")
	cmd.Flags().StringVar(&workProfileID, "profile", "", "Work profile ID to serve with")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("profile")

	return cmd
}

func newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <branch_id> <service_point_id>",
		Short: "Close a service point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, spID := args[0], args[1]

			_, err := client.Post("/api/v1/branches/"+branchID+"/service-points/"+spID+"/close", nil)
			if err != nil {
				return fmt.Errorf("close service point: %w", err)
			}

			fmt.Printf("Service point %s closed\n", spID)
			return nil
		},
	}
}

func newAutoCallCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "autocall <branch_id> <service_point_id>",
		Short: "Toggle auto-call mode on a service point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, spID := args[0], args[1]

			_, err := client.Put("/api/v1/branches/"+branchID+"/service-points/"+spID+"/auto-call", map[string]any{
				"enabled": !off,
			})
			if err != nil {
				return fmt.Errorf("set auto-call: %w", err)
			}

			if off {
				fmt.Printf("Auto-call disabled on %s\n", spID)
			} else {
				fmt.Printf("Auto-call enabled on %s\n", spID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "Disable auto-call instead of enabling it")

	return cmd
}

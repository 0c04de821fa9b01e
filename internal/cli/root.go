package cli

import (
	"log/slog"
	"os"

	"github.com/me/branchq/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking BRANCHQ_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("BRANCHQ_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the branchq CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "branchq",
		Short: "branchq operator console",
		Long:  "branchq issues tickets, staffs service points, and drives visits through a branch.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "branchq server URL (or BRANCHQ_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newBranchesCmd(),
		newQueuesCmd(),
		newTicketCmd(),
		newVisitCmd(),
		newOpenCmd(),
		newCloseCmd(),
		newAutoCallCmd(),
		newCallCmd(),
		newRecallCmd(),
		newServeCmd(),
		newFinishCmd(),
		newNoShowCmd(),
		newBackCmd(),
		newTransferCmd(),
	)

	return root
}

// Package autocall drives automatic visit calling: a polling loop that
// finds idle service points in auto-call mode and calls the next
// waiting visit to each.
package autocall

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/branchq/pkg/model"
)

// Caller is the slice of the branch service the loop needs.
type Caller interface {
	BranchIDs() []string
	AutoCallCandidates(branchID string) ([]string, error)
	CallNext(ctx context.Context, branchID, servicePointID string, queueIDs []string) (*model.Visit, error)
}

// Config holds auto-call loop configuration.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second}
}

// Loop polls branches and calls visits to idle auto-call points.
type Loop struct {
	caller Caller
	config Config
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLoop creates a new auto-call loop.
func NewLoop(caller Caller, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		caller: caller,
		config: cfg,
		logger: logger.With("component", "autocall"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("auto-call loop started", "poll_interval", l.config.PollInterval)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("auto-call loop stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("auto-call loop stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Stop gracefully shuts down the loop and waits for the current tick to
// finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick runs a single auto-call iteration across all branches.
func (l *Loop) Tick(ctx context.Context) {
	for _, branchID := range l.caller.BranchIDs() {
		points, err := l.caller.AutoCallCandidates(branchID)
		if err != nil {
			l.logger.Error("list auto-call candidates", "branch_id", branchID, "error", err)
			continue
		}

		for _, spID := range points {
			v, err := l.caller.CallNext(ctx, branchID, spID, nil)
			if err != nil {
				// A point that lost its staff between listing and calling
				// just skips the round.
				l.logger.Error("auto call", "branch_id", branchID, "service_point_id", spID, "error", err)
				continue
			}
			if v != nil {
				l.logger.Info("visit auto-called",
					"branch_id", branchID, "service_point_id", spID,
					"visit_id", v.ID, "ticket", v.Ticket)
			}
		}
	}
}

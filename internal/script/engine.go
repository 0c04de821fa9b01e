// Package script hosts embedded-script rules using JavaScript (goja).
// Scripts run sandboxed: they see only the input variables bound for the
// run, and every run is bounded by a wall-clock timeout since rule code
// is late-bound and untrusted.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a script run when no timeout is configured.
const DefaultTimeout = 500 * time.Millisecond

// ErrTimeout is returned when a script exceeds its time budget.
var ErrTimeout = errors.New("script execution timed out")

// Engine runs rule scripts. A fresh VM is created per run so one rule's
// globals can never leak into another's.
type Engine struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates a script engine. A non-positive timeout falls back
// to DefaultTimeout.
func NewEngine(timeout time.Duration, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		timeout: timeout,
		logger:  logger.With("component", "script"),
	}
}

// Run executes code with the given variables bound as script globals and
// reads back the named outputs after the run. Outputs the script did not
// set are absent from the result map.
//
// The run is interrupted when the timeout elapses or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, code string, inputs map[string]any, outputs []string) (map[string]any, error) {
	vm := goja.New()

	for name, value := range inputs {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("set input %s: %w", name, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(runCtx.Err())
		case <-done:
		}
	}()

	start := time.Now()
	_, err := vm.RunString(code)
	close(done)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			e.logger.Warn("script interrupted", "elapsed", time.Since(start))
			// The caller backing out is not the script's fault.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("script error: %w", err)
	}

	result := make(map[string]any, len(outputs))
	for _, name := range outputs {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			continue
		}
		result[name] = val.Export()
	}
	return result, nil
}

// RunString is a convenience for scripts with a single string output.
// Returns "" with ok=false when the output is unset or not a string.
func (e *Engine) RunString(ctx context.Context, code string, inputs map[string]any, output string) (string, bool, error) {
	out, err := e.Run(ctx, code, inputs, []string{output})
	if err != nil {
		return "", false, err
	}
	s, ok := out[output].(string)
	return s, ok, nil
}

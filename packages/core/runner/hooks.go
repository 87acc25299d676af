package runner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// executeBeforeHooks runs the before hooks of a group and stops at the
// first failure.
func (r *Runner) executeBeforeHooks(ctx context.Context, hooks []string, dir string, env []string) error {
	for _, hook := range hooks {
		if err := r.executeHook(ctx, hook, dir, env); err != nil {
			return fmt.Errorf("before hook failed: %w", err)
		}
	}
	return nil
}

// executeAfterHooks runs every after hook and returns the first error.
func (r *Runner) executeAfterHooks(ctx context.Context, hooks []string, dir string, env []string) error {
	var firstErr error
	for _, hook := range hooks {
		if err := r.executeHook(ctx, hook, dir, env); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("after hook failed: %w", err)
			}
			// After hooks are cleanup; keep going.
		}
	}
	return firstErr
}

// executeHook runs one hook. A command prefixed with "-" may fail.
func (r *Runner) executeHook(ctx context.Context, hook, dir string, env []string) error {
	cmdStr := strings.TrimSpace(hook)
	if cmdStr == "" {
		return nil
	}

	ignoreError := strings.HasPrefix(cmdStr, "-")
	if ignoreError {
		cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
	}

	res := r.executeShellCommand(ctx, cmdStr, dir, env, r.config.Timeout)
	if res.Error == nil {
		return nil
	}
	if ignoreError {
		r.logger.Debug("runner.hook_ignored", zap.String("command", cmdStr), zap.Error(res.Error))
		return nil
	}
	return fmt.Errorf("command %q: %w\nOutput: %s", cmdStr, res.Error, res.Output)
}

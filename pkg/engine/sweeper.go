package engine

import (
	stdcontext "context"

	"github.com/flowkeep/flowkeep/pkg/domain/execution"
	"github.com/flowkeep/flowkeep/pkg/logger"
)

// orphanFailureMessage is the synthetic error recorded on executions that
// were still RUNNING when the previous process died.
const orphanFailureMessage = "execution orphaned by process restart"

// SweepOrphans marks every execution left in RUNNING by a previous process
// as FAILED. Step results persisted before the crash remain queryable as the
// durable trace. Call once at startup, before the server begins accepting
// requests; a RUNNING row seen at that point cannot belong to a live walker.
func SweepOrphans(ctx stdcontext.Context, store execution.Store) (int, error) {
	orphans, err := store.FindByStatus(ctx, execution.StatusRunning)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, exec := range orphans {
		if err := store.UpdateExecutionStatus(ctx, exec.ExecutionID, execution.StatusFailed, orphanFailureMessage); err != nil {
			logger.ErrorC(logger.CategorySweeper, "failed to sweep orphaned execution",
				"executionId", exec.ExecutionID.String(), "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		logger.WarnC(logger.CategorySweeper, "marked orphaned executions as failed", "count", swept)
	}
	return swept, nil
}

// Package scheduler implements the Scheduler Loop, Task Selector, Event
// Handler and Aborter of spec §4.3–§4.7: the orchestration that drives a
// plan.State to completion by managing a bounded pool of worker.Process
// handles via the poller.
package scheduler

import "github.com/distr1/rpkgexec/internal/plan"

// Select is the pure Task Selector of spec §4.5: given the current plan
// state and the number of currently-running workers, it returns the next
// task to schedule (or DeadlockError if none is selectable, work remains
// and no worker is running). Tie-break is ascending row index, which falls out of the loop
// order below.
func Select(s *plan.State, activeWorkers int) (plan.Task, error) {
	if activeWorkers >= s.NumWorkers {
		return plan.Task{Kind: plan.Idle}, nil
	}

	for i, r := range s.Rows {
		if !r.BuildDone && len(r.DepsLeft) == 0 && r.WorkerID == "" {
			return plan.Task{Kind: plan.Build, RowIndex: i}, nil
		}
	}

	for i, r := range s.Rows {
		if r.BuildDone && !r.InstallDone && r.WorkerID == "" {
			return plan.Task{Kind: plan.Install, RowIndex: i}, nil
		}
	}

	if activeWorkers == 0 && !s.AllInstalled() {
		return plan.Task{}, &DeadlockError{}
	}

	return plan.Task{Kind: plan.Idle}, nil
}

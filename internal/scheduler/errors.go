package scheduler

import "golang.org/x/xerrors"

// BuildFailureError reports a build worker exiting non-zero (spec §7).
type BuildFailureError struct {
	Package string
}

func (e *BuildFailureError) Error() string {
	return xerrors.Errorf("build failed: %s", e.Package).Error()
}

// InstallFailureError reports an install worker exiting non-zero (spec §7).
type InstallFailureError struct {
	Package string
}

func (e *InstallFailureError) Error() string {
	return xerrors.Errorf("install failed: %s", e.Package).Error()
}

// CompletionAccessorError reports the built-file accessor raising on a
// successful build exit (spec §7).
type CompletionAccessorError struct {
	Package string
	Err     error
}

func (e *CompletionAccessorError) Error() string {
	return xerrors.Errorf("completion accessor for %s: %w", e.Package, e.Err).Error()
}

func (e *CompletionAccessorError) Unwrap() error { return e.Err }

// DeadlockError reports the selector finding no task selectable while work
// remains and no worker is live (spec §7: SchedulerDeadlock).
type DeadlockError struct{}

func (e *DeadlockError) Error() string {
	return "scheduler deadlock: no selectable task, work remains, no live worker"
}

package worker

import "golang.org/x/xerrors"

// SpawnError reports that a collaborator could not start a child process
// (spec §7: SpawnFailure).
type SpawnError struct {
	Package string
	Err     error
}

func (e *SpawnError) Error() string {
	return xerrors.Errorf("spawn %s: %w", e.Package, e.Err).Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }

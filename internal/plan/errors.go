package plan

import "golang.org/x/xerrors"

// InvalidInputError reports a plan or configuration problem caught before
// any worker is spawned (spec §7: InvalidInput).
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return xerrors.Errorf("invalid input: %s", e.Reason).Error()
}

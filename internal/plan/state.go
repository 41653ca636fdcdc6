package plan

// State is the authoritative in-memory record of an installation plan: the
// rows plus their residual dependency sets. It is created once per Execute
// call and mutated by the scheduler goroutine only (see internal/scheduler).
//
// The live worker registry described by spec §3 ("workers: map<worker_id,
// Worker>") is deliberately not stored here: Worker embeds a worker.Process,
// so keeping the registry in this package would make plan depend on worker
// (whose runners take primitive arguments so that worker does not depend
// on plan). The scheduler package owns the registry instead and keeps it
// in lock-step with each Row's WorkerID field; State remains the single
// source of truth for rows and config.
type State struct {
	Rows       []*Row
	Lib        string
	NumWorkers int

	byPkg map[string]int
}

// NewState validates rows and configuration, pre-seeds done flags, and
// computes each row's initial residual dependency set.
func NewState(rows []*Row, lib string, numWorkers int) (*State, error) {
	if lib == "" {
		return nil, &InvalidInputError{Reason: "lib must be a non-empty path"}
	}
	if numWorkers < 1 {
		return nil, &InvalidInputError{Reason: "num_workers must be >= 1"}
	}

	byPkg := make(map[string]int, len(rows))
	for i, r := range rows {
		if r.Package == "" {
			return nil, &InvalidInputError{Reason: "row missing package name"}
		}
		if _, dup := byPkg[r.Package]; dup {
			return nil, &InvalidInputError{Reason: "duplicate package " + r.Package}
		}
		byPkg[r.Package] = i
	}

	for _, r := range rows {
		if r.Type == Deps || r.Type == Installed {
			r.BuildDone = true
			r.InstallDone = true
		}
		if r.Binary {
			r.BuildDone = true
		}
	}

	for _, r := range rows {
		left := make(map[string]struct{}, len(r.Dependencies))
		for dep := range r.Dependencies {
			if dep == r.Package {
				continue // a row never depends on itself
			}
			if idx, ok := byPkg[dep]; ok && rows[idx].InstallDone {
				continue // already satisfied by pre-seeding
			}
			left[dep] = struct{}{}
		}
		r.DepsLeft = left
	}

	return &State{Rows: rows, Lib: lib, NumWorkers: numWorkers, byPkg: byPkg}, nil
}

// RowByPackage looks up a row by package name.
func (s *State) RowByPackage(name string) (*Row, bool) {
	i, ok := s.byPkg[name]
	if !ok {
		return nil, false
	}
	return s.Rows[i], true
}

// AllInstalled reports whether every row has completed installation.
func (s *State) AllInstalled() bool {
	for _, r := range s.Rows {
		if !r.InstallDone {
			return false
		}
	}
	return true
}

// ReleaseDependents removes installedPkg from every row's residual
// dependency set. Called once a row's install completes successfully; this
// is what unblocks downstream builds (spec §4.6).
func (s *State) ReleaseDependents(installedPkg string) {
	for _, r := range s.Rows {
		delete(r.DepsLeft, installedPkg)
	}
}

// Package plan holds the in-memory representation of an installation plan:
// the immutable rows produced by the (external) resolver, plus the
// per-row execution fields the scheduler mutates as it drives each row
// through its build and install phases.
package plan

import "time"

// PkgType is the provenance of a plan row.
type PkgType string

const (
	CRAN      PkgType = "cran"
	Bioc      PkgType = "bioc"
	Standard  PkgType = "standard"
	Local     PkgType = "local"
	GitHub    PkgType = "github"
	Deps      PkgType = "deps"
	Installed PkgType = "installed"
)

// Compilation is the tri-state "does this package need compilation" flag.
type Compilation int

const (
	CompilationUnknown Compilation = iota
	CompilationYes
	CompilationNo
)

// LibStatus is the resolver-derived status of a row's target library entry.
// The scheduler never computes it; it only carries it through to the
// summary (see internal/report).
type LibStatus string

const (
	StatusNew      LibStatus = "new"
	StatusUpdate   LibStatus = "update"
	StatusNoUpdate LibStatus = "no-update"
	StatusCurrent  LibStatus = "current"
)

// Kind distinguishes the three task variants the selector can produce.
type Kind int

const (
	Idle Kind = iota
	Build
	Install
)

func (k Kind) String() string {
	switch k {
	case Build:
		return "build"
	case Install:
		return "install"
	default:
		return "idle"
	}
}

// Task is the tagged variant returned by the selector. RowIndex is only
// meaningful when Kind is Build or Install.
type Task struct {
	Kind     Kind
	RowIndex int
}

// Timing separates the overloaded "start stamp while running, elapsed
// after completion" field the original system used into two distinct
// values, per the design note in spec §9.
type Timing struct {
	Start   time.Time
	Elapsed time.Duration
	running bool
}

// Begin marks the timing as started at now.
func (t *Timing) Begin(now time.Time) {
	t.Start = now
	t.running = true
}

// Finish records the elapsed duration since Begin. Calling Finish without a
// prior Begin is a no-op.
func (t *Timing) Finish(now time.Time) {
	if !t.running {
		return
	}
	t.Elapsed = now.Sub(t.Start)
	t.running = false
}

// Row is one entry of the plan: a package to build and/or install.
//
// The fields above the blank line are immutable inputs set by the caller
// before Execute begins; the scheduler never writes them (except File,
// which is overwritten with the produced archive path on a successful
// build — see §4.6). The execution fields in the second group are mutated
// by the scheduler only; LibStatus is set by the caller's resolver (see
// internal/libstatus) before Execute and only read afterwards.
type Row struct {
	Package          string
	Version          string
	Type             PkgType
	Binary           bool
	File             string
	Sources          []string
	Dependencies     map[string]struct{}
	Vignettes        bool
	NeedsCompilation Compilation
	Metadata         map[string]string

	BuildDone     bool
	InstallDone   bool
	BuildTime     Timing
	InstallTime   Timing
	BuildError    bool
	InstallError  bool
	BuildStdout   []string
	BuildStderr   []string
	InstallStdout []string
	InstallStderr []string
	WorkerID      string
	DepsLeft      map[string]struct{}

	LibStatus LibStatus
}

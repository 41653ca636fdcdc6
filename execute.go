package rpkgexec

import (
	"context"
	"log"
	"os"

	"github.com/distr1/rpkgexec/internal/plan"
	"github.com/distr1/rpkgexec/internal/poller"
	"github.com/distr1/rpkgexec/internal/report"
	"github.com/distr1/rpkgexec/internal/scheduler"
	"github.com/distr1/rpkgexec/internal/worker"
)

// Config bundles everything Execute needs beyond the plan rows themselves:
// the library destination, the worker pool size, and the collaborators
// (build/install runners, progress reporter, alert sink, logger). Every
// field has a usable zero value except Lib and NumWorkers, so callers that
// only care about the defaults can construct a bare Config{Lib: ...,
// NumWorkers: ...}.
type Config struct {
	Lib        string
	NumWorkers int
	TmpRoot    string

	Build   worker.BuildRunner
	Install worker.InstallRunner

	Progress report.ProgressReporter
	Alert    report.AlertSink
	Log      *log.Logger
}

// Result is what Execute returns when the run ends: the rows with their
// execution fields, and the summary. After an abort, rows the run never
// reached are returned with their unfinished state.
type Result struct {
	Rows    []*plan.Row
	Summary report.Summary
}

// Execute runs the bounded-parallelism build+install scheduler over rows
// until every row is installed or the run aborts on the first build or
// install failure. It is the single public entry point; everything else
// under internal/ is an implementation detail.
func Execute(ctx context.Context, rows []*plan.Row, cfg Config) (Result, error) {
	if cfg.TmpRoot == "" {
		cfg.TmpRoot = os.TempDir()
	}
	if cfg.Build == nil {
		cfg.Build = &worker.DefaultBuildRunner{}
	}
	if cfg.Install == nil {
		cfg.Install = &worker.DefaultInstallRunner{}
	}
	if cfg.Progress == nil {
		cfg.Progress = report.NewLineProgressReporter(os.Stderr)
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.Alert == nil {
		cfg.Alert = &report.LogAlertSink{Log: cfg.Log}
	}

	state, err := plan.NewState(rows, cfg.Lib, cfg.NumWorkers)
	if err != nil {
		return Result{}, err
	}

	m := &scheduler.Machine{
		State:    state,
		Build:    cfg.Build,
		Install:  cfg.Install,
		Poll:     poller.New(),
		Progress: cfg.Progress,
		Alert:    cfg.Alert,
		Log:      cfg.Log,
		TmpRoot:  cfg.TmpRoot,
		// Each build's per-row temp directory is only safe to remove once
		// the whole run is done (the install step, and BuiltFile, still
		// need it), so its removal is registered as an at-exit hook rather
		// than run inline, the same batching RegisterAtExit/RunAtExit give
		// the teacher's post-install hooks.
		Cleanup: func(dir string) {
			RegisterAtExit(func() error { return os.RemoveAll(dir) })
		},
	}

	runErr := m.Run(ctx)
	return Result{Rows: state.Rows, Summary: report.Summarize(state.Rows)}, runErr
}

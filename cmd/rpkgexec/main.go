// Command rpkgexec drives a bounded-parallelism R package build+install
// plan described by a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/distr1/rpkgexec"
	"github.com/distr1/rpkgexec/internal/ghmeta"
	"github.com/distr1/rpkgexec/internal/libstatus"
	"github.com/distr1/rpkgexec/internal/oninterrupt"
	"github.com/distr1/rpkgexec/internal/plan"
	"github.com/distr1/rpkgexec/internal/worker"
)

var (
	debug        = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	planFile     = flag.String("plan", "", "path to a JSON file describing the installation plan")
	lib          = flag.String("lib", "", "destination library directory")
	numWorkers   = flag.Int("workers", 1, "maximum number of concurrent build/install workers")
	rbin         = flag.String("r", "R", "R executable to invoke for builds")
	tmpRoot      = flag.String("tmp", "", "directory under which per-build temporary directories are created (defaults to the OS temp dir)")
	verifyGithub = flag.Bool("verify_github", false, "verify pinned commits of github-remote rows against the GitHub API before building")
	githubToken  = flag.String("github_access_token", "", "oauth2 GitHub access token, used only with -verify_github")
)

// inputRow is the on-disk JSON shape for one plan row: the same fields as
// plan.Row, but with Dependencies as a string slice since JSON has no
// native set type.
type inputRow struct {
	Package          string            `json:"package"`
	Version          string            `json:"version"`
	Type             plan.PkgType      `json:"type"`
	Binary           bool              `json:"binary"`
	File             string            `json:"file"`
	Sources          []string          `json:"sources"`
	Dependencies     []string          `json:"dependencies"`
	Vignettes        bool              `json:"vignettes"`
	NeedsCompilation plan.Compilation  `json:"needs_compilation"`
	Metadata         map[string]string `json:"metadata"`
}

func loadRows(path string) ([]*plan.Row, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in []inputRow
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	rows := make([]*plan.Row, len(in))
	for i, r := range in {
		deps := make(map[string]struct{}, len(r.Dependencies))
		for _, d := range r.Dependencies {
			deps[d] = struct{}{}
		}
		rows[i] = &plan.Row{
			Package:          r.Package,
			Version:          r.Version,
			Type:             r.Type,
			Binary:           r.Binary,
			File:             r.File,
			Sources:          r.Sources,
			Dependencies:     deps,
			Vignettes:        r.Vignettes,
			NeedsCompilation: r.NeedsCompilation,
			Metadata:         r.Metadata,
		}
	}
	return rows, nil
}

func main() {
	// The hidden re-exec subcommand must be checked before flag.Parse,
	// since its argv shape does not match the top-level flags.
	if archive, dest, ok := worker.ReexecFlag(os.Args[1:]); ok {
		if err := worker.RunExtract(archive, dest); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	flag.Parse()
	if err := funcmain(); err != nil {
		if *debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func funcmain() error {
	if *planFile == "" {
		return fmt.Errorf("-plan is required")
	}
	if *lib == "" {
		return fmt.Errorf("-lib is required")
	}

	rows, err := loadRows(*planFile)
	if err != nil {
		return err
	}
	libstatus.ResolveAll(libstatus.DirResolver{}, rows, *lib)

	ctx, canc := rpkgexec.InterruptibleContext()
	defer canc()

	if *verifyGithub {
		if err := verifyGithubRows(ctx, rows); err != nil {
			return err
		}
	}

	runRoot, err := os.MkdirTemp(*tmpRoot, "rpkgexec-")
	if err != nil {
		return err
	}
	// oninterrupt handles the SIGINT path (the aborter has already killed
	// the worker tree by the time this runs); RegisterAtExit handles the
	// normal-completion path, run once below via RunAtExit, the same
	// split the teacher keeps between its onInterrupt package and
	// RegisterAtExit/RunAtExit.
	oninterrupt.Register(func() { os.RemoveAll(runRoot) })
	rpkgexec.RegisterAtExit(func() error { return os.RemoveAll(runRoot) })

	logger := log.New(os.Stderr, "", log.LstdFlags)
	result, runErr := rpkgexec.Execute(ctx, rows, rpkgexec.Config{
		Lib:        *lib,
		NumWorkers: *numWorkers,
		TmpRoot:    runRoot,
		Build:      &worker.DefaultBuildRunner{RBin: *rbin},
		Install:    &worker.DefaultInstallRunner{},
		Log:        logger,
	})

	fmt.Fprintln(os.Stdout, result.Summary.String())

	// Mirrors cmd/distri/distri.go's funcmain, which ends its install
	// subcommand with "return distri.RunAtExit()": batched cleanup hooks
	// (here, per-build tmp directories plus the run root) only fire once
	// the whole plan has reached a terminal state.
	if atExitErr := rpkgexec.RunAtExit(); atExitErr != nil && runErr == nil {
		return atExitErr
	}
	return runErr
}

// verifyGithubRows runs the ghmeta pre-flight check over every github-type
// row before scheduling, so a stale pinned commit fails fast instead of
// surfacing as an opaque build-worker error.
func verifyGithubRows(ctx context.Context, rows []*plan.Row) error {
	client := ghmeta.NewClient(ctx, *githubToken)
	for _, r := range rows {
		if r.Type != plan.GitHub {
			continue
		}
		owner, repo, sha := r.Metadata["RemoteUsername"], r.Metadata["RemoteRepo"], r.Metadata["RemoteSha"]
		if err := client.Verify(ctx, owner, repo, sha); err != nil {
			return err
		}
	}
	return nil
}

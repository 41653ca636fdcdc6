package scheduler

import (
	"bytes"
	"context"
	"log"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/distr1/rpkgexec/internal/plan"
	"github.com/distr1/rpkgexec/internal/poller"
	"github.com/distr1/rpkgexec/internal/report"
	"github.com/distr1/rpkgexec/internal/worker"
	"github.com/google/go-cmp/cmp"
)

// fakeProcess is an in-memory worker.Process that has already "exited" with
// a scripted exit code and output, so the scheduler loop can be exercised
// without spawning real subprocesses.
type fakeProcess struct {
	mu       sync.Mutex
	stdout   []byte
	stderr   []byte
	exitCode int
	built    string
	buildErr error
}

func (f *fakeProcess) IsAlive() bool           { return false }
func (f *fakeProcess) ReadOutput(n int) []byte { return nil }
func (f *fakeProcess) ReadError(n int) []byte  { return nil }

func (f *fakeProcess) ReadAllOutput() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.stdout
	f.stdout = nil
	return out
}

func (f *fakeProcess) ReadAllError() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.stderr
	f.stderr = nil
	return out
}

func (f *fakeProcess) HasIncompleteOutput() bool       { return false }
func (f *fakeProcess) HasIncompleteError() bool        { return false }
func (f *fakeProcess) ExitStatus() (int, bool)         { return f.exitCode, true }
func (f *fakeProcess) BuiltFile() (string, error)      { return f.built, f.buildErr }
func (f *fakeProcess) Signal(sig syscall.Signal) error { return nil }
func (f *fakeProcess) KillTree() error                 { return nil }
func (f *fakeProcess) Wait(timeout time.Duration) bool { return true }
func (f *fakeProcess) PollFDs() (int, int)             { return -1, -1 }
func (f *fakeProcess) Close() error                    { return nil }

// fakeRunner builds/installs every row successfully and instantly.
type fakeRunner struct {
	mu      sync.Mutex
	builds  int
	installs int
}

func (r *fakeRunner) SpawnBuild(ctx context.Context, path, tmpDir, lib string, vignettes bool, needsCompilation *bool) (worker.Process, error) {
	r.mu.Lock()
	r.builds++
	r.mu.Unlock()
	return &fakeProcess{stdout: []byte("building\n"), exitCode: 0, built: path + ".tar.gz"}, nil
}

func (r *fakeRunner) SpawnInstall(ctx context.Context, archive, lib string, metadata map[string]string) (worker.Process, error) {
	r.mu.Lock()
	r.installs++
	r.mu.Unlock()
	return &fakeProcess{stdout: []byte("installing\n"), exitCode: 0}, nil
}

// failingInstallRunner fails the install of one named package, succeeds for
// everything else.
type failingInstallRunner struct {
	fakeRunner
	failPackage string
}

func (r *failingInstallRunner) SpawnInstall(ctx context.Context, archive, lib string, metadata map[string]string) (worker.Process, error) {
	if archive == r.failPackage {
		return &fakeProcess{stderr: []byte("error: boom\n"), exitCode: 1}, nil
	}
	return r.fakeRunner.SpawnInstall(ctx, archive, lib, metadata)
}

type fakeProgress struct {
	created, ticked, closed int
}

func (p *fakeProgress) Create(total int) { p.created = total }
func (p *fakeProgress) Tick(delta int)   { p.ticked += delta }
func (p *fakeProgress) Close()           { p.closed++ }

type recordingAlertSink struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlertSink) Alert(severity report.Severity, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, severity.String()+": "+message)
}

func newTestMachine(t *testing.T, rows []*plan.Row, numWorkers int, install worker.InstallRunner) (*Machine, *plan.State) {
	t.Helper()
	state, err := plan.NewState(rows, t.TempDir(), numWorkers)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	runner := &fakeRunner{}
	if install == nil {
		install = runner
	}
	m := &Machine{
		State:    state,
		Build:    runner,
		Install:  install,
		Poll:     poller.New(),
		Progress: &fakeProgress{},
		Alert:    &recordingAlertSink{},
		Log:      log.New(&bytes.Buffer{}, "", 0),
		TmpRoot:  t.TempDir(),
	}
	return m, state
}

func TestMachineRunLinearChain(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a", Version: "1.0", File: "a"},
		{Package: "b", Version: "1.0", File: "b", Dependencies: map[string]struct{}{"a": {}}},
	}
	m, state := newTestMachine(t, rows, 2, nil)

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !state.AllInstalled() {
		t.Fatal("expected all rows installed")
	}

	type doneState struct {
		Package               string
		BuildDone, InstallDone bool
	}
	var got []doneState
	for _, r := range rows {
		got = append(got, doneState{r.Package, r.BuildDone, r.InstallDone})
		if len(r.InstallStdout) == 0 {
			t.Errorf("row %s missing captured install stdout", r.Package)
		}
	}
	want := []doneState{
		{"a", true, true},
		{"b", true, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("final row done-flags mismatch (-want +got):\n%s", diff)
	}
}

func TestMachineRunInstallFailureStopsRun(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a", Version: "1.0", File: "a"},
	}
	m, _ := newTestMachine(t, rows, 1, &failingInstallRunner{failPackage: "a.tar.gz"})

	err := m.Run(context.Background())
	if _, ok := err.(*InstallFailureError); !ok {
		t.Fatalf("got %v, want InstallFailureError", err)
	}
	if !rows[0].InstallError {
		t.Error("expected InstallError to be recorded on the row")
	}
}

func TestSplitLinesRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("one line, no newline"),
		[]byte("line1\nline2\n"),
		[]byte("line1\nline2\npartial"),
	}
	want := [][]string{
		nil,
		{"one line, no newline"},
		{"line1", "line2"},
		{"line1", "line2", "partial"},
	}
	for i, c := range cases {
		got := splitLines(c)
		if diff := cmp.Diff(want[i], got); diff != "" {
			t.Errorf("case %d: splitLines() mismatch (-want +got):\n%s", i, diff)
		}
	}
}

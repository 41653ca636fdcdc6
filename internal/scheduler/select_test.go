package scheduler

import (
	"testing"

	"github.com/distr1/rpkgexec/internal/plan"
	"github.com/google/go-cmp/cmp"
)

func mustState(t *testing.T, rows []*plan.Row, numWorkers int) *plan.State {
	t.Helper()
	s, err := plan.NewState(rows, "/lib", numWorkers)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

// assertTask compares the {Kind, RowIndex} pair the selector returns
// against the expected task in one shot, instead of two separate field
// checks.
func assertTask(t *testing.T, got plan.Task, want plan.Task) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectEmptyPlanIsIdle(t *testing.T) {
	s := mustState(t, nil, 2)
	task, err := Select(s, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if task.Kind != plan.Idle {
		t.Errorf("got %v, want Idle", task.Kind)
	}
}

func TestSelectSinglePreinstalledRowIsIdle(t *testing.T) {
	rows := []*plan.Row{{Package: "a", Type: plan.Installed}}
	s := mustState(t, rows, 2)
	task, err := Select(s, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if task.Kind != plan.Idle {
		t.Errorf("got %v, want Idle", task.Kind)
	}
	if !s.AllInstalled() {
		t.Error("expected AllInstalled")
	}
}

func TestSelectLinearChain(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a", Dependencies: map[string]struct{}{}},
		{Package: "b", Dependencies: map[string]struct{}{"a": {}}},
		{Package: "c", Dependencies: map[string]struct{}{"b": {}}},
	}
	s := mustState(t, rows, 1)

	task, err := Select(s, 0)
	if err != nil {
		t.Fatalf("step1: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Build, RowIndex: 0})
	rows[0].BuildDone = true

	task, err = Select(s, 0)
	if err != nil {
		t.Fatalf("step2: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Install, RowIndex: 0})
	rows[0].InstallDone = true
	s.ReleaseDependents("a")

	task, err = Select(s, 0)
	if err != nil {
		t.Fatalf("step3: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Build, RowIndex: 1})
}

func TestSelectParallelLeavesRespectTieBreak(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a"},
		{Package: "b"},
	}
	s := mustState(t, rows, 2)

	task, err := Select(s, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Build, RowIndex: 0})
	rows[0].WorkerID = "w1" // simulate spawn claiming the row

	task, err = Select(s, 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Build, RowIndex: 1})
	rows[1].WorkerID = "w2"

	task, err = Select(s, 2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Idle})
}

func TestSelectBuildFailureMidPlanBlocksDependents(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a"},
		{Package: "b", Dependencies: map[string]struct{}{"a": {}}},
	}
	s := mustState(t, rows, 2)

	rows[0].BuildDone = true
	rows[0].InstallDone = true
	rows[0].BuildError = true // build failed, install never attempted

	// activeWorkers=1 keeps this below the deadlock threshold; the point
	// under test is that b stays blocked because a failed build never
	// calls ReleaseDependents.
	task, err := Select(s, 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if task.Kind != plan.Idle {
		t.Errorf("got %v, want Idle since b's dependency never released", task.Kind)
	}
}

func TestSelectMixedBinaryAndSource(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a", Binary: true},
		{Package: "b"},
	}
	s := mustState(t, rows, 2)

	if !rows[0].BuildDone {
		t.Fatal("binary row should pre-seed BuildDone")
	}

	// Build candidates always outrank install candidates, so the source
	// row's build is selected first even though the binary row is already
	// installable.
	task, err := Select(s, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Build, RowIndex: 1})
	rows[1].WorkerID = "w1" // simulate spawn claiming the row

	task, err = Select(s, 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertTask(t, task, plan.Task{Kind: plan.Install, RowIndex: 0})
}

func TestSelectDeadlockWhenNoWorkersAndWorkRemains(t *testing.T) {
	rows := []*plan.Row{
		{Package: "a", Dependencies: map[string]struct{}{"missing": {}}},
	}
	s := mustState(t, rows, 1)

	_, err := Select(s, 0)
	if _, ok := err.(*DeadlockError); !ok {
		t.Fatalf("got %v, want DeadlockError", err)
	}
}

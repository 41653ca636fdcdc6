package libstatus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/rpkgexec/internal/plan"
)

func writeDescription(t *testing.T, lib, pkg, version string) {
	t.Helper()
	dir := filepath.Join(lib, pkg)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "Package: " + pkg + "\nVersion: " + version + "\n"
	if err := os.WriteFile(filepath.Join(dir, "DESCRIPTION"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDirResolver(t *testing.T) {
	lib := t.TempDir()
	writeDescription(t, lib, "current", "1.2.0")
	writeDescription(t, lib, "stale", "1.0.0")
	writeDescription(t, lib, "newer-installed", "9.9.9")

	cases := []struct {
		row  *plan.Row
		want plan.LibStatus
	}{
		{&plan.Row{Package: "absent", Version: "1.0.0"}, plan.StatusNew},
		{&plan.Row{Package: "current", Version: "1.2.0"}, plan.StatusCurrent},
		{&plan.Row{Package: "stale", Version: "1.1.0"}, plan.StatusUpdate},
		{&plan.Row{Package: "newer-installed", Version: "1.0.0"}, plan.StatusNoUpdate},
	}
	var r DirResolver
	for _, c := range cases {
		got := r.Resolve(c.row, lib)
		if got != c.want {
			t.Errorf("Resolve(%s) = %v, want %v", c.row.Package, got, c.want)
		}
	}
}

func TestResolveAllTagsEveryRow(t *testing.T) {
	lib := t.TempDir()
	rows := []*plan.Row{
		{Package: "a", Version: "1.0.0"},
		{Package: "b", Version: "1.0.0"},
	}
	ResolveAll(DirResolver{}, rows, lib)
	for _, r := range rows {
		if r.LibStatus != plan.StatusNew {
			t.Errorf("row %s: got %v, want StatusNew", r.Package, r.LibStatus)
		}
	}
}

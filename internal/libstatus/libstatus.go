// Package libstatus derives each plan row's lib_status (new/update/
// no-update/current) by comparing the row's version against whatever is
// already installed under the target library, the supplemented collaborator
// named but not specified by the completion summary in spec.md §6.
package libstatus

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/rpkgexec/internal/plan"
)

// Resolver computes the lib_status of a single row before scheduling.
type Resolver interface {
	Resolve(row *plan.Row, lib string) plan.LibStatus
}

// DirResolver is the default Resolver: it looks for
// lib/<package>/DESCRIPTION and reads its "Version:" field, the same
// metadata file R itself consults, without shelling out to R to do it.
type DirResolver struct{}

func (DirResolver) Resolve(row *plan.Row, lib string) plan.LibStatus {
	installed, ok := readInstalledVersion(lib, row.Package)
	if !ok {
		return plan.StatusNew
	}
	if installed == row.Version {
		return plan.StatusCurrent
	}
	if versionLess(installed, row.Version) {
		return plan.StatusUpdate
	}
	return plan.StatusNoUpdate
}

func readInstalledVersion(lib, pkg string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(lib, pkg, "DESCRIPTION"))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(b), "\n") {
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// versionLess compares dotted numeric version strings component-wise,
// treating a missing component as 0 and reading each component only up to
// its first non-digit, so "2-3" counts as 2 and a component with no leading
// digit as 0 (DESCRIPTION versions are not guaranteed to be pure semver).
func versionLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = atoiSafe(as[i])
		}
		if i < len(bs) {
			bv = atoiSafe(bs[i])
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// ResolveAll tags every row's LibStatus field in place.
func ResolveAll(r Resolver, rows []*plan.Row, lib string) {
	for _, row := range rows {
		row.LibStatus = r.Resolve(row, lib)
	}
}

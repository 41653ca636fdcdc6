package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/distr1/rpkgexec/internal/plan"
)

// Summary is the user-visible completion summary of spec §6.
type Summary struct {
	Installed  int
	Updated    int
	NotUpdated int
	Current    int

	BuildTime   time.Duration
	InstallTime time.Duration
}

// Summarize aggregates the final row states into a Summary.
func Summarize(rows []*plan.Row) Summary {
	var s Summary
	for _, r := range rows {
		switch r.LibStatus {
		case plan.StatusNew:
			s.Installed++
		case plan.StatusUpdate:
			s.Updated++
		case plan.StatusNoUpdate:
			s.NotUpdated++
		case plan.StatusCurrent:
			s.Current++
		}
		s.BuildTime += r.BuildTime.Elapsed
		s.InstallTime += r.InstallTime.Elapsed
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Installed: %d, Updated: %d, Not updated: %d, Current: %d\n",
		s.Installed, s.Updated, s.NotUpdated, s.Current)
	fmt.Fprintf(&b, "Build time: %s, Install time: %s",
		FormatDuration(s.BuildTime), FormatDuration(s.InstallTime))
	return b.String()
}

package report

import (
	"testing"
	"time"

	"github.com/distr1/rpkgexec/internal/plan"
	"github.com/google/go-cmp/cmp"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h2m3s"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.d); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestInstallNote(t *testing.T) {
	cases := []struct {
		rowType  string
		metadata map[string]string
		want     string
	}{
		{"cran", nil, ""},
		{"standard", nil, ""},
		{"bioc", nil, "(BioC)"},
		{"local", nil, "(local)"},
		{"github", map[string]string{"RemoteUsername": "r-lib", "RemoteRepo": "pak", "RemoteSha": "0123456789abcdef"}, "(github::r-lib/pak@0123456)"},
		{"standard", map[string]string{"RemoteType": "xgit"}, "(xgit)"},
	}
	for _, c := range cases {
		if got := InstallNote(c.rowType, c.metadata); got != c.want {
			t.Errorf("InstallNote(%q, %v) = %q, want %q", c.rowType, c.metadata, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	rows := []*plan.Row{
		{LibStatus: plan.StatusNew, BuildTime: plan.Timing{Elapsed: 2 * time.Second}, InstallTime: plan.Timing{Elapsed: time.Second}},
		{LibStatus: plan.StatusCurrent},
		{LibStatus: plan.StatusUpdate, BuildTime: plan.Timing{Elapsed: 3 * time.Second}},
	}
	s := Summarize(rows)
	want := Summary{
		Installed:   1,
		Current:     1,
		Updated:     1,
		BuildTime:   5 * time.Second,
		InstallTime: time.Second,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
}

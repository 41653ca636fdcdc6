// Package report implements the user-facing collaborators of spec §6: the
// AlertSink and ProgressReporter interfaces, plus the completion summary
// and duration formatting consumed by Execute's caller.
package report

import (
	"fmt"
	"log"
	"time"
)

// Severity mirrors spec §6's AlertSink severities.
type Severity int

const (
	Info Severity = iota
	Success
	Danger
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "ok"
	case Danger:
		return "FAIL"
	default:
		return "info"
	}
}

// AlertSink is the pluggable collaborator that surfaces user-facing
// messages (spec §6).
type AlertSink interface {
	Alert(severity Severity, message string)
}

// LogAlertSink logs alerts through a *log.Logger, the ambient logging style
// used throughout this module.
type LogAlertSink struct {
	Log *log.Logger
}

func (a *LogAlertSink) Alert(severity Severity, message string) {
	a.Log.Printf("%s: %s", severity, message)
}

// BuildAlertMessage renders the templated message for a build completion
// (spec §4.6: "severity + templated message carrying package, version,
// elapsed seconds").
func BuildAlertMessage(pkg, version string, elapsed time.Duration, success bool) string {
	if success {
		return fmt.Sprintf("built %s %s (%.1fs)", pkg, version, elapsed.Seconds())
	}
	return fmt.Sprintf("build of %s %s failed after %.1fs", pkg, version, elapsed.Seconds())
}

// InstallAlertMessage renders the templated message for an install
// completion, additionally carrying the type-dependent note (spec §6).
func InstallAlertMessage(pkg, version string, elapsed time.Duration, success bool, note string) string {
	suffix := ""
	if note != "" {
		suffix = " " + note
	}
	if success {
		return fmt.Sprintf("installed %s %s%s (%.1fs)", pkg, version, suffix, elapsed.Seconds())
	}
	return fmt.Sprintf("install of %s %s%s failed after %.1fs", pkg, version, suffix, elapsed.Seconds())
}

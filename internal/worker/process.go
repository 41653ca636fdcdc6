// Package worker is the uniform façade over one spawned child process
// (either a build or an install), per spec §4.1. All I/O is non-blocking
// and all liveness checks are cheap and repeatable; apart from Wait, which
// only the aborter's teardown path calls, the only thing that blocks the
// scheduler is the Event Poller (internal/poller), never the handle itself.
package worker

import (
	"context"
	"syscall"
	"time"
)

// Process is the Worker Process Handle contract of spec §4.1.
type Process interface {
	// IsAlive reports whether the child has not yet been reaped. It is
	// cheap to call repeatedly: it performs a non-blocking wait internally
	// and caches the result once the child has exited.
	IsAlive() bool

	// ReadOutput and ReadError return up to n bytes currently buffered on
	// stdout/stderr without blocking. They return nil if nothing is
	// currently available.
	ReadOutput(n int) []byte
	ReadError(n int) []byte

	// ReadAllOutput and ReadAllError perform the terminal drain: valid only
	// after the child has exited, they return everything left unread.
	ReadAllOutput() []byte
	ReadAllError() []byte

	// HasIncompleteOutput and HasIncompleteError report whether the pipe
	// still holds unread data even after a terminal drain; see the
	// two-phase drain protocol in spec §4.4.
	HasIncompleteOutput() bool
	HasIncompleteError() bool

	// ExitStatus returns the child's exit code and whether it is valid
	// (i.e. the child has been reaped).
	ExitStatus() (code int, ok bool)

	// BuiltFile returns the path to the produced binary archive. Valid only
	// for build handles, only after a successful exit.
	BuiltFile() (string, error)

	// Signal sends sig to the child.
	Signal(sig syscall.Signal) error

	// KillTree sends SIGKILL to the child's entire process group.
	KillTree() error

	// Wait blocks the calling goroutine (not the scheduler loop — only the
	// aborter's teardown path calls this) until the child exits or timeout
	// elapses, returning whether it exited in time.
	Wait(timeout time.Duration) bool

	// PollFDs exposes the raw, non-blocking read file descriptors for
	// stdout/stderr so the Event Poller can multiplex across many workers
	// in a single poll(2) call. A descriptor of -1 means "not pollable".
	PollFDs() (stdout, stderr int)

	// Close releases the handle's file descriptors. Safe to call more than
	// once.
	Close() error
}

// BuildRunner spawns a process that builds a source package at path into a
// binary archive under tmpDir, with library search path prefixed by lib.
type BuildRunner interface {
	SpawnBuild(ctx context.Context, path, tmpDir, lib string, vignettes bool, needsCompilation *bool) (Process, error)
}

// InstallRunner spawns a process that installs a binary archive into lib.
type InstallRunner interface {
	SpawnInstall(ctx context.Context, archive, lib string, metadata map[string]string) (Process, error)
}

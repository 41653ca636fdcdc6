//go:build linux

// Package poller implements the Event Poller of spec §4.2: given a set of
// worker handles, block up to a bounded timeout and return the subset that
// are ready (readable on stdout/stderr, or exited).
package poller

import (
	"time"

	"golang.org/x/sys/unix"
)

// Handle is the subset of worker.Process the poller needs. Kept narrow
// (rather than importing internal/worker) so fakes in other packages' tests
// can implement it without pulling in the exec-based handle.
type Handle interface {
	PollFDs() (stdout, stderr int)
	IsAlive() bool
}

// Poller multiplexes readiness across many handles with a single poll(2)
// call. It holds no state between calls.
type Poller struct{}

// New returns a ready-to-use Poller.
func New() *Poller { return &Poller{} }

// Poll blocks up to timeout for any handle to become ready and returns a
// boolean per handle in input order. If handles is empty, Poll is not
// meant to be called at all (spec §4.2); calling it anyway just returns an
// all-false, empty-length result immediately.
func (p *Poller) Poll(handles []Handle, timeout time.Duration) ([]bool, error) {
	ready := make([]bool, len(handles))
	if len(handles) == 0 {
		return ready, nil
	}

	var pfds []unix.PollFd
	var owner []int
	for i, h := range handles {
		out, errFD := h.PollFDs()
		if out >= 0 {
			pfds = append(pfds, unix.PollFd{Fd: int32(out), Events: unix.POLLIN})
			owner = append(owner, i)
		}
		if errFD >= 0 {
			pfds = append(pfds, unix.PollFd{Fd: int32(errFD), Events: unix.POLLIN})
			owner = append(owner, i)
		}
	}

	if len(pfds) > 0 {
		ms := int(timeout / time.Millisecond)
		n, err := unix.Poll(pfds, ms)
		if err != nil && err != unix.EINTR {
			return nil, err
		}
		if n > 0 {
			for j, pfd := range pfds {
				if pfd.Revents != 0 {
					ready[owner[j]] = true
				}
			}
		}
	}

	// A handle whose child has already exited is ready regardless of its
	// pipe state (e.g. both pipes already fully drained).
	for i, h := range handles {
		if !ready[i] && !h.IsAlive() {
			ready[i] = true
		}
	}

	return ready, nil
}

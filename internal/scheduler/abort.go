package scheduler

import (
	"log"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// abort implements the Aborter of spec §4.7: send an interrupt signal to
// every live worker, then hard-kill any that are still alive after a
// bounded grace period. It fans out one goroutine per worker joined with
// an errgroup, the same shape internal/install and internal/batch use for
// concurrent I/O fan-out in the teacher repo. It must be idempotent and
// must never itself raise, so every goroutine recovers and swallows its
// own errors (only logging them).
func abort(workers []*activeWorker, logger *log.Logger) {
	if len(workers) == 0 {
		return
	}
	var eg errgroup.Group
	for _, w := range workers {
		w := w
		eg.Go(func() (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Printf("aborter: recovered panic for worker %s: %v", w.ID, r)
				}
			}()
			if w.Proc.IsAlive() {
				if err := w.Proc.Signal(syscall.SIGINT); err != nil {
					logger.Printf("aborter: signal %s: %v", w.ID, err)
				}
			}
			if w.Proc.IsAlive() && !w.Proc.Wait(200*time.Millisecond) {
				if err := w.Proc.KillTree(); err != nil {
					logger.Printf("aborter: kill %s: %v", w.ID, err)
				}
			}
			return nil
		})
	}
	eg.Wait() // errors are already logged inline; abort itself never raises
}

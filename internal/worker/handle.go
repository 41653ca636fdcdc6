//go:build linux

package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// newRawPipe creates a pipe whose read end is a raw, non-blocking file
// descriptor (not wrapped in an *os.File, so the Go runtime's netpoller
// never takes it over and a Read syscall on it returns immediately rather
// than parking the calling goroutine). The write end fd can be handed to
// exec.Cmd.Stdout/Stderr via osFile: os/exec special-cases *os.File values
// and dup2()s the descriptor straight into the child instead of spawning a
// copying goroutine.
func newRawPipe() (readFD int, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// execProcess is the default, exec.Cmd-backed implementation of Process.
type execProcess struct {
	mu sync.Mutex

	cmd      *exec.Cmd
	pid      int
	stdoutFD int
	stderrFD int
	reaped   bool
	exitCode int

	isBuild          bool
	tmpDir           string
	builtFilePattern string
}

func spawn(ctx context.Context, name string, args, env []string, dir string) (*execProcess, error) {
	outFD, outW, err := newRawPipe()
	if err != nil {
		return nil, xerrors.Errorf("stdout pipe: %w", err)
	}
	errFD, errW, err := newRawPipe()
	if err != nil {
		unix.Close(outFD)
		unix.Close(outW)
		return nil, xerrors.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.CommandContext(context.Background(), name, args...) // see note below
	_ = ctx                                                         // cancellation is handled by the aborter, not exec.CommandContext's SIGKILL
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = env
	}
	cmd.Stdout = osFile(outW, "stdout")
	cmd.Stderr = osFile(errW, "stderr")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		unix.Close(outFD)
		unix.Close(outW)
		unix.Close(errFD)
		unix.Close(errW)
		return nil, xerrors.Errorf("%s: %w", name, err)
	}
	// The child now owns the write ends (dup'd across fork+exec); the
	// parent only needs the read ends.
	unix.Close(outW)
	unix.Close(errW)

	return &execProcess{
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		stdoutFD: outFD,
		stderrFD: errFD,
		exitCode: -1,
	}, nil
}

func (p *execProcess) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.checkExitedLocked()
}

// checkExitedLocked performs a non-blocking reap attempt. Caller holds p.mu.
func (p *execProcess) checkExitedLocked() bool {
	if p.reaped {
		return true
	}
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(p.pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		// ECHILD: something else already reaped it. Fail closed.
		p.reaped = true
		return true
	}
	if wpid != p.pid {
		return false
	}
	p.reaped = true
	switch {
	case ws.Exited():
		p.exitCode = ws.ExitStatus()
	case ws.Signaled():
		p.exitCode = 128 + int(ws.Signal())
	default:
		p.exitCode = -1
	}
	return true
}

func (p *execProcess) ExitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.reaped
}

func (p *execProcess) ReadOutput(n int) []byte { return readFD(p.stdoutFD, n) }
func (p *execProcess) ReadError(n int) []byte  { return readFD(p.stderrFD, n) }

func readFD(fd, n int) []byte {
	if fd < 0 || n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	nr, err := unix.Read(fd, buf)
	if nr <= 0 || err != nil {
		return nil
	}
	return buf[:nr]
}

func (p *execProcess) ReadAllOutput() []byte { return readAllFD(p.stdoutFD) }
func (p *execProcess) ReadAllError() []byte  { return readAllFD(p.stderrFD) }

func readAllFD(fd int) []byte {
	if fd < 0 {
		return nil
	}
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		nr, err := unix.Read(fd, buf)
		if nr > 0 {
			out = append(out, buf[:nr]...)
		}
		if nr <= 0 || err != nil {
			break
		}
	}
	return out
}

func (p *execProcess) HasIncompleteOutput() bool { return pollReadable(p.stdoutFD) }
func (p *execProcess) HasIncompleteError() bool  { return pollReadable(p.stderrFD) }

func pollReadable(fd int) bool {
	if fd < 0 {
		return false
	}
	pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfds, 0)
	return err == nil && n > 0 && pfds[0].Revents&unix.POLLIN != 0
}

func (p *execProcess) PollFDs() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdoutFD, p.stderrFD
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	return unix.Kill(p.pid, sig)
}

func (p *execProcess) KillTree() error {
	return unix.Kill(-p.pid, syscall.SIGKILL)
}

func (p *execProcess) Wait(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !p.IsAlive() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (p *execProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdoutFD >= 0 {
		unix.Close(p.stdoutFD)
		p.stdoutFD = -1
	}
	if p.stderrFD >= 0 {
		unix.Close(p.stderrFD)
		p.stderrFD = -1
	}
	return nil
}

// osFile wraps a raw write-end fd so exec.Cmd can dup2 it directly into the
// child without Go spawning a copy goroutine for it.
func osFile(fd int, name string) *os.File {
	return os.NewFile(uintptr(fd), name)
}

func (p *execProcess) BuiltFile() (string, error) {
	if !p.isBuild {
		return "", xerrors.Errorf("BuiltFile: not a build process")
	}
	matches, err := filepath.Glob(filepath.Join(p.tmpDir, p.builtFilePattern))
	if err != nil {
		return "", xerrors.Errorf("glob %s: %w", p.tmpDir, err)
	}
	if len(matches) != 1 {
		return "", xerrors.Errorf("expected exactly one built archive in %s, found %d", p.tmpDir, len(matches))
	}
	return matches[0], nil
}

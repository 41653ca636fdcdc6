package report

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressReporter is the pluggable collaborator of spec §6:
// {create(total_units), tick(delta), close()}.
type ProgressReporter interface {
	Create(total int)
	Tick(delta int)
	Close()
}

// LineProgressReporter redraws a single status line in place when attached
// to a terminal, and falls back to quiet no-op ticks otherwise (matching
// distri's batch.go, which only ever refreshes its status block when
// isTerminal holds). isTerminal here is the real mattn/go-isatty check,
// rather than batch.go's own hand-rolled unix.IoctlGetTermios probe.
type LineProgressReporter struct {
	out        io.Writer
	isTerminal bool

	mu          sync.Mutex
	total, done int
	lastRefresh time.Time
}

// NewLineProgressReporter builds a reporter writing to out.
func NewLineProgressReporter(out io.Writer) *LineProgressReporter {
	term := false
	if f, ok := out.(*os.File); ok {
		term = isatty.IsTerminal(f.Fd())
	}
	return &LineProgressReporter{out: out, isTerminal: term}
}

func (p *LineProgressReporter) Create(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
	p.refreshLocked(true)
}

func (p *LineProgressReporter) Tick(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += delta
	p.refreshLocked(false)
}

func (p *LineProgressReporter) refreshLocked(force bool) {
	if !p.isTerminal {
		return
	}
	if !force && time.Since(p.lastRefresh) < 100*time.Millisecond && p.done < p.total {
		return
	}
	p.lastRefresh = time.Now()
	fmt.Fprintf(p.out, "\r%d of %d units complete", p.done, p.total)
}

func (p *LineProgressReporter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isTerminal {
		fmt.Fprintln(p.out)
	}
}

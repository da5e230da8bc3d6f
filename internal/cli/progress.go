package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/morozRed/engview/internal/queue"
)

// extractProgressReporter draws a one-line spinner on stderr while the
// queue drains. It stays silent when stderr is not a terminal.
type extractProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	label   string
	start   time.Time
	spinner int
	lastLen int
}

func newExtractProgressReporter(label string, asJSON bool) *extractProgressReporter {
	enabled := term.IsTerminal(int(os.Stderr.Fd())) && !asJSON
	return &extractProgressReporter{
		out:     os.Stderr,
		enabled: enabled,
		label:   label,
		start:   time.Now(),
	}
}

// Update is registered as a queue progress observer.
func (r *extractProgressReporter) Update(status queue.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++

	r.printStatus(fmt.Sprintf("%s %s %d/%d extracted, %d pending",
		frame, r.label, status.Completed, status.Total, status.Pending))
}

func (r *extractProgressReporter) Done(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("%s complete (%d files in %s)", r.label, count, elapsed))
	fmt.Fprintln(r.out)
}

func (r *extractProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.out, "\r%s", status)
}

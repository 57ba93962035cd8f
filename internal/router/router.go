// Package router implements the stdout/stderr interception ("autocapture",
// component F in spec.md §4.F): it swaps the process-wide stdout/stderr
// write paths for an interceptor that line-splits written bytes and emits
// one log event per complete line, forwarding to the original streams when
// passthrough is enabled.
//
// Grounded on original_source/vigilant/router.py and autocapture.py. Go
// offers no portable way to replace os.Stdout.Write in place the way
// Python replaces sys.stdout.write, so this package instead replaces
// os.Stdout/os.Stderr themselves with the write end of an os.Pipe and
// pumps the read end through the same line-splitting logic; Disable
// restores the original *os.File values.
package router

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/vigilant-run/vigilant-go/internal/types"
)

// LogFunc receives one emitted log record.
type LogFunc func(types.Log)

// Router owns the process-wide stdout/stderr swap. Safe for enable/disable
// to be called from any goroutine; idempotent against repeated enable or
// disable calls. Disable restores the package-level os.Stdout/os.Stderr
// pointers, closes only the pipes' write ends, and waits for each pump
// goroutine to drain what is already buffered; the read ends are closed
// by the pumps themselves once they reach EOF.
type Router struct {
	mu          sync.Mutex
	enabled     bool
	passthrough bool
	logFn       LogFunc

	origStdout *os.File
	origStderr *os.File

	stdoutPipeW *os.File
	stderrPipeW *os.File

	wg sync.WaitGroup
}

// New builds a Router that emits captured lines via logFn. When
// passthrough is true, every captured line is also written to the
// original stream it came from.
func New(logFn LogFunc, passthrough bool) *Router {
	return &Router{logFn: logFn, passthrough: passthrough}
}

// Enable installs the interceptor. Calling Enable while already enabled is
// a no-op.
func (r *Router) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return nil
	}

	origStdout := os.Stdout
	origStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return err
	}

	r.origStdout = origStdout
	r.origStderr = origStderr
	r.stdoutPipeW = stdoutW
	r.stderrPipeW = stderrW

	os.Stdout = stdoutW
	os.Stderr = stderrW

	r.wg.Add(2)
	go r.pump(stdoutR, origStdout, types.LevelInfo)
	go r.pump(stderrR, origStderr, types.LevelError)

	r.enabled = true
	return nil
}

// Disable restores the original stdout/stderr. Calling Disable while
// already disabled is a no-op.
func (r *Router) Disable() {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	os.Stdout = r.origStdout
	os.Stderr = r.origStderr
	stdoutW := r.stdoutPipeW
	stderrW := r.stderrPipeW
	r.enabled = false
	r.mu.Unlock()

	stdoutW.Close()
	stderrW.Close()
	r.wg.Wait()
}

// pump reads lines from the pipe's read end, emitting one log per complete
// line and forwarding to passthroughDst when enabled. It exits once the
// write end is closed by Disable; a trailing partial line still unread at
// that point is emitted as one last log (and forwarded with a newline).
func (r *Router) pump(readEnd *os.File, passthroughDst *os.File, level types.LogLevel) {
	defer r.wg.Done()
	defer readEnd.Close()

	scanner := bufio.NewScanner(readEnd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if r.logFn != nil {
			r.logFn(types.Log{Level: level, Body: line, Attributes: map[string]string{}})
		}
		if r.passthroughEnabled() {
			io.WriteString(passthroughDst, line+"\n")
		}
	}
}

func (r *Router) passthroughEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passthrough
}

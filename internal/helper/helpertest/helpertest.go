// Package helpertest provides an in-memory helper.Runner for tests.
package helpertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/caedis/mod-updater/internal/helper"
)

// Reply scripts one invocation.
type Reply struct {
	Output string
	// ExitAfter is how many HasExited polls report a running process.
	ExitAfter int
	// Hang keeps the process running until it is killed.
	Hang bool
	// Err fails Start.
	Err error
	// OnStart runs when the invocation starts, e.g. to write a file.
	OnStart func(args []string)
}

// Runner answers invocations with Handler. The zero value answers every
// invocation with empty output.
type Runner struct {
	Handler func(args []string) Reply
	Missing bool

	mu       sync.Mutex
	calls    [][]string
	active   int
	overlaps int
}

var _ helper.Runner = (*Runner)(nil)

// Available implements helper.Runner.
func (r *Runner) Available() error {
	if r.Missing {
		return fmt.Errorf("fake: %w", helper.ErrMissingHelper)
	}
	return nil
}

// Start implements helper.Runner.
func (r *Runner) Start(ctx context.Context, args ...string) (helper.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Available(); err != nil {
		return nil, err
	}

	var reply Reply
	if r.Handler != nil {
		reply = r.Handler(args)
	}

	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), args...))
	if reply.Err != nil {
		r.mu.Unlock()
		return nil, reply.Err
	}
	if r.active > 0 {
		r.overlaps++
	}
	r.active++
	r.mu.Unlock()

	if reply.OnStart != nil {
		reply.OnStart(args)
	}
	return &Handle{runner: r, reply: reply}, nil
}

// Calls returns every invocation's arguments in order.
func (r *Runner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo returns the invocations whose command is cmd.
func (r *Runner) CallsTo(cmd string) [][]string {
	var out [][]string
	for _, c := range r.Calls() {
		if len(c) > 0 && c[0] == cmd {
			out = append(out, c)
		}
	}
	return out
}

// Overlaps counts invocations started while another was still running.
func (r *Runner) Overlaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlaps
}

func (r *Runner) finish() {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
}

// Handle is a scripted helper.Handle.
type Handle struct {
	runner *Runner
	reply  Reply

	mu     sync.Mutex
	polls  int
	exited bool
	killed bool
}

// HasExited implements helper.Handle.
func (h *Handle) HasExited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return true
	}
	if h.reply.Hang {
		return false
	}
	if h.polls < h.reply.ExitAfter {
		h.polls++
		return false
	}
	h.exited = true
	h.runner.finish()
	return true
}

// Output implements helper.Handle. A killed process keeps only the first
// line of its scripted output.
func (h *Handle) Output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.killed {
		first, _, _ := strings.Cut(h.reply.Output, "\n")
		return first
	}
	return h.reply.Output
}

// Kill implements helper.Handle.
func (h *Handle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	h.killed = true
	h.exited = true
	h.runner.finish()
	return nil
}

// Killed reports whether the handle was killed.
func (h *Handle) Killed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

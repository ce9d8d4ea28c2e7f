// Package helper runs the external helper executable that performs all
// network fetches for the engine.
//
// Invocations are strictly sequential: Invoke blocks until the previous
// process has exited. Each Process owns its output buffer.
package helper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/schedule"
)

const (
	// MetadataPolls is the poll budget of a get-metafile invocation.
	MetadataPolls = 10
	// DownloadPolls is the poll budget of a get-file invocation.
	DownloadPolls = 60

	waitDelay = 2 * time.Second
)

var (
	// ErrTimeout means the helper was killed after exhausting its polls.
	ErrTimeout = schedule.ErrTimeout
	// ErrMissingHelper means the helper executable does not exist.
	ErrMissingHelper = errors.New("helper executable not found")
)

// Handle is the view of a running invocation the engine polls.
type Handle interface {
	HasExited() bool
	Output() string
	Kill() error
}

// Runner starts helper invocations. *Client is the production Runner.
type Runner interface {
	Start(ctx context.Context, args ...string) (Handle, error)
	Available() error
}

// Client invokes the helper executable.
type Client struct {
	path string
	dir  string
	env  []string
	sem  chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithDir sets the helper's working directory.
func WithDir(dir string) Option {
	return func(c *Client) { c.dir = dir }
}

// WithEnv sets the helper's environment. The default inherits ours.
func WithEnv(env []string) Option {
	return func(c *Client) { c.env = env }
}

// New returns a Client for the executable at path.
func New(path string, opts ...Option) *Client {
	c := &Client{
		path: path,
		sem:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the helper executable path.
func (c *Client) Path() string {
	return c.path
}

// Available returns ErrMissingHelper when the executable is absent.
func (c *Client) Available() error {
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", c.path, ErrMissingHelper)
		}
		return fmt.Errorf("checking helper %s: %w", c.path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", c.path, ErrMissingHelper)
	}
	return nil
}

// Invoke starts the helper with args once no other invocation is running.
// It blocks until the previous process exits or ctx ends.
func (c *Client) Invoke(ctx context.Context, args ...string) (*Process, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.Available(); err != nil {
		<-c.sem
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = c.dir
	if c.env != nil {
		cmd.Env = c.env
	}
	cmd.WaitDelay = waitDelay

	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stdout = &p.out
	cmd.Stderr = &p.out

	logging.Debugf("Verbose: helper start args=%s\n", redactArgs(args))
	if err := cmd.Start(); err != nil {
		<-c.sem
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", c.path, ErrMissingHelper)
		}
		return nil, fmt.Errorf("starting helper: %w", err)
	}

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		<-c.sem
		close(p.done)
		logging.Debugf("Verbose: helper exit cmd=%s err=%v\n", firstArg(args), err)
	}()
	return p, nil
}

// Start is Invoke behind the Runner interface.
func (c *Client) Start(ctx context.Context, args ...string) (Handle, error) {
	p, err := c.Invoke(ctx, args...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Process is one helper invocation.
type Process struct {
	cmd  *exec.Cmd
	out  lockedBuffer
	done chan struct{}

	mu  sync.Mutex
	err error
}

// HasExited reports whether the process has exited and its output is final.
func (p *Process) HasExited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Output returns everything written to stdout and stderr so far.
func (p *Process) Output() string {
	return p.out.String()
}

// ExitErr is the error returned by the process wait, nil before exit.
// The exit code is informational only.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// ExitError returns the wait error of h when h is a helper Process that has
// exited with one, and nil otherwise.
func ExitError(h Handle) error {
	if p, ok := h.(*Process); ok {
		return p.ExitErr()
	}
	return nil
}

// Kill terminates the process and waits until it has been reaped.
func (p *Process) Kill() error {
	if p.HasExited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing helper: %w", err)
	}
	<-p.done
	return nil
}

// Await polls h once per tick and kills it after limit polls.
func Await(ctx context.Context, poller *schedule.Poller, h Handle, limit int, onTick func(n int)) error {
	err := poller.Wait(ctx, limit, h.HasExited, onTick)
	if err == nil {
		return nil
	}
	if kerr := h.Kill(); kerr != nil {
		logging.Debugf("Verbose: helper kill failed err=%v\n", kerr)
	}
	if errors.Is(err, schedule.ErrTimeout) {
		return fmt.Errorf("helper still running after %d polls: %w", limit, ErrTimeout)
	}
	return err
}

// MetafileArgs builds a get-metafile command line.
func MetafileArgs(url, token string) []string {
	args := []string{"get-metafile", url}
	if token != "" {
		args = append(args, token)
	}
	return args
}

// FileArgs builds a get-file command line.
func FileArgs(url, savePath, token string) []string {
	args := []string{"get-file", url, savePath}
	if token != "" {
		args = append(args, token)
	}
	return args
}

// ValidateArgs builds a validate-key command line.
func ValidateArgs(token string) []string {
	return []string{"validate-key", token}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// redactArgs hides the API token, which is always the last argument after
// the fixed ones of each command.
func redactArgs(args []string) string {
	fixed := 0
	switch firstArg(args) {
	case "get-metafile":
		fixed = 2
	case "get-file":
		fixed = 3
	case "validate-key":
		fixed = 1
	}
	out := make([]string, len(args))
	copy(out, args)
	if fixed > 0 && len(out) > fixed {
		out[len(out)-1] = "***"
	}
	return strings.Join(out, " ")
}

package notify

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Console presents on a terminal. Prompts read a numbered answer from the
// input when interactive and take the default button otherwise.
type Console struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool
	color       colorstring.Colorize

	// Opener opens a URL in the browser. Defaults to OpenBrowser.
	Opener func(url string) error

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	barLabel string
}

// NewConsole returns a Console writing to out and reading answers from in.
func NewConsole(out io.Writer, in io.Reader, interactive bool) *Console {
	return &Console{
		out:         out,
		in:          bufio.NewReader(in),
		interactive: interactive,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !interactive,
			Reset:   true,
		},
		Opener: OpenBrowser,
	}
}

// Stdio returns a Console on stdout/stdin, interactive only when both are
// terminals.
func Stdio() *Console {
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	return NewConsole(os.Stdout, os.Stdin, interactive)
}

// Interactive reports whether prompts are answered by the user.
func (c *Console) Interactive() bool {
	return c.interactive
}

func (c *Console) Status(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishBarLocked()
	fmt.Fprintln(c.out, c.color.Color("[cyan]==>"), text)
}

func (c *Console) Summary(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishBarLocked()
	fmt.Fprintln(c.out, c.color.Color("[bold][green]==>"), text)
}

// Progress shows a percentage bar per label. A new label finishes the
// previous bar.
func (c *Console) Progress(label string, percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar == nil || c.barLabel != label {
		c.finishBarLocked()
		c.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(c.out),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionEnableColorCodes(c.interactive),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(c.out) }),
		)
		c.barLabel = label
	}
	percent = min(max(percent, 0), 100)
	_ = c.bar.Set(percent)
	if percent == 100 {
		c.bar = nil
		c.barLabel = ""
	}
}

func (c *Console) finishBarLocked() {
	if c.bar == nil {
		return
	}
	_ = c.bar.Finish()
	c.bar = nil
	c.barLabel = ""
}

// Prompt asks on the console and runs the chosen button's action before
// returning.
func (c *Console) Prompt(p Prompt) {
	if p.Default < 0 || p.Default >= len(p.Buttons) {
		p.Default = 0
	}

	c.mu.Lock()
	c.finishBarLocked()
	if p.Title != "" {
		fmt.Fprintln(c.out, c.color.Color("[bold][yellow]??"), p.Title)
	}
	if p.Text != "" {
		fmt.Fprintln(c.out, p.Text)
	}
	for i, b := range p.Buttons {
		marker := " "
		if i == p.Default {
			marker = "*"
		}
		fmt.Fprintf(c.out, " %s%d) %s\n", marker, i+1, b.Label)
	}

	choice := p.Default
	if c.interactive && len(p.Buttons) > 0 {
		choice = c.readChoiceLocked(len(p.Buttons), p.Default)
	} else if len(p.Buttons) > 0 {
		fmt.Fprintf(c.out, "Choosing %q (non-interactive)\n", p.Buttons[p.Default].Label)
	}
	c.mu.Unlock()

	choose(p, choice)
}

func (c *Console) readChoiceLocked(n, def int) int {
	for {
		fmt.Fprintf(c.out, "Select [1-%d] (default %d): ", n, def+1)
		line, err := c.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return def
		}
		if i, convErr := strconv.Atoi(line); convErr == nil && i >= 1 && i <= n {
			return i - 1
		}
		if err != nil {
			return def
		}
		fmt.Fprintln(c.out, c.color.Color("[red]Invalid choice"))
	}
}

// OpenWebsite opens url, or prints it when no browser can be used.
func (c *Console) OpenWebsite(url string) error {
	c.mu.Lock()
	c.finishBarLocked()
	fmt.Fprintf(c.out, "Open in browser: %s\n", url)
	c.mu.Unlock()

	if !c.interactive || c.Opener == nil {
		return nil
	}
	return c.Opener(url)
}

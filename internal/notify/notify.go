// Package notify is the boundary between the engine and whatever shows
// status, progress and prompts to the user.
package notify

// Button is one prompt answer. Action runs when the button is chosen.
type Button struct {
	Label  string
	Action func()
}

// Prompt is a question with caller-supplied answers. Default is the index
// of the button chosen when nobody can answer.
type Prompt struct {
	Title   string
	Text    string
	Buttons []Button
	Default int
}

// Presenter receives fire-and-forget events from the engine. Prompt may
// answer synchronously or later; the engine polls for the answer.
type Presenter interface {
	Status(text string)
	Progress(label string, percent int)
	Summary(text string)
	Prompt(p Prompt)
	OpenWebsite(url string) error
}

// Discard is a Presenter that drops everything and answers every prompt
// with its default button.
type Discard struct{}

func (Discard) Status(string) {}
func (Discard) Progress(string, int) {}
func (Discard) Summary(string) {}
func (Discard) OpenWebsite(string) error { return nil }

func (Discard) Prompt(p Prompt) {
	choose(p, p.Default)
}

func choose(p Prompt, i int) {
	if i < 0 || i >= len(p.Buttons) {
		return
	}
	if a := p.Buttons[i].Action; a != nil {
		a()
	}
}

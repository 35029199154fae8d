// Package components holds the built-in Triggers, Conditions and Actions
// that YAML bot definitions can use.
package components

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"mewbot/internal/adapters/filewatch"
	"mewbot/internal/core"
	"mewbot/internal/events"
)

func messages() core.TypeSet {
	return core.Types(core.TypeOf[events.Message]())
}

// TextContains matches messages containing Text.
type TextContains struct {
	Text            string `yaml:"text"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

func (*TextContains) ConsumesInputs() core.TypeSet { return messages() }

func (t *TextContains) Validate() error {
	if t.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

func (t *TextContains) Matches(event core.InputEvent) bool {
	msg, ok := event.(events.Message)
	if !ok {
		return false
	}
	if t.CaseInsensitive {
		return strings.Contains(strings.ToLower(msg.MessageText()), strings.ToLower(t.Text))
	}
	return strings.Contains(msg.MessageText(), t.Text)
}

// Regex matches messages against a regular expression.
type Regex struct {
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

func (*Regex) ConsumesInputs() core.TypeSet { return messages() }

func (r *Regex) Validate() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	r.re = re
	return nil
}

func (r *Regex) Matches(event core.InputEvent) bool {
	msg, ok := event.(events.Message)
	if !ok || r.re == nil {
		return false
	}
	return r.re.MatchString(msg.MessageText())
}

// AnyMessage matches every message.
type AnyMessage struct{}

func (*AnyMessage) ConsumesInputs() core.TypeSet { return messages() }

func (*AnyMessage) Matches(event core.InputEvent) bool {
	_, ok := event.(events.Message)
	return ok
}

// Tick matches timer events, optionally only those of one job.
type Tick struct {
	Name string `yaml:"name"`
}

func (*Tick) ConsumesInputs() core.TypeSet {
	return core.Types(core.TypeOf[events.Tick]())
}

func (t *Tick) Matches(event core.InputEvent) bool {
	tick, ok := event.(events.Tick)
	if !ok {
		return false
	}
	return t.Name == "" || tick.TickName() == t.Name
}

// FileChanged matches filesystem events, optionally narrowed by base-name
// patterns and operations.
type FileChanged struct {
	Patterns []string `yaml:"patterns"`
	Ops      []string `yaml:"ops"`
}

func (*FileChanged) ConsumesInputs() core.TypeSet {
	return core.Types(core.TypeOf[filewatch.FileEvent]())
}

func (f *FileChanged) Validate() error {
	errs := []error{filewatch.ValidatePatterns(f.Patterns)}
	for _, op := range f.Ops {
		if !slices.Contains(filewatch.Ops, op) {
			errs = append(errs, fmt.Errorf("op %q must be one of %s", op, strings.Join(filewatch.Ops, ", ")))
		}
	}
	return errors.Join(errs...)
}

func (f *FileChanged) Matches(event core.InputEvent) bool {
	fe, ok := core.As[filewatch.FileEvent](event)
	if !ok {
		return false
	}
	if len(f.Ops) > 0 && !slices.Contains(f.Ops, fe.Op) {
		return false
	}
	return filewatch.Match(f.Patterns, fe.Path)
}

// NewRegex compiles pattern into a Regex trigger.
func NewRegex(pattern string) (*Regex, error) {
	r := &Regex{Pattern: pattern}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

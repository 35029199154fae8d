package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"text/template"

	"mewbot/internal/core"
	"mewbot/internal/events"
	"mewbot/internal/loader"
	"mewbot/internal/store"
)

func anyInput() core.TypeSet {
	return core.Types(core.TypeOf[core.InputEvent]())
}

func anyOutput() core.TypeSet {
	return core.Types(core.TypeOf[core.OutputEvent]())
}

// Reply answers a message on the platform it came from.
type Reply struct {
	core.OutputBinding
	Template string `yaml:"template"`

	tmpl *template.Template
}

// NewReply builds a Reply from a text/template.
func NewReply(text string) (*Reply, error) {
	r := &Reply{Template: text}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (*Reply) ConsumesInputs() core.TypeSet { return messages() }

func (*Reply) ProducesOutputs() core.TypeSet { return anyOutput() }

func (r *Reply) Validate() error {
	if r.Template == "" {
		return errors.New("template is required")
	}
	t, err := parseTemplate("reply", r.Template)
	if err != nil {
		return err
	}
	r.tmpl = t
	return nil
}

func (r *Reply) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	msg, ok := event.(events.Message)
	if !ok {
		return fmt.Errorf("reply: %T is not a message", event)
	}
	text, err := render(r.tmpl, newTemplateData(event, state))
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return r.Emit(msg.Reply(text))
}

// Announce sends a message to a fixed channel, whatever the event. Scheduled
// and file events reach a chat through it.
type Announce struct {
	core.OutputBinding
	Source   string `yaml:"source"`
	Channel  string `yaml:"channel"`
	Template string `yaml:"template"`

	tmpl *template.Template
}

func (*Announce) ConsumesInputs() core.TypeSet { return anyInput() }

func (*Announce) ProducesOutputs() core.TypeSet { return anyOutput() }

func (a *Announce) Validate() error {
	var errs []error
	if a.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if a.Template == "" {
		errs = append(errs, errors.New("template is required"))
	} else if t, err := parseTemplate("announce", a.Template); err != nil {
		errs = append(errs, err)
	} else {
		a.tmpl = t
	}
	return errors.Join(errs...)
}

func (a *Announce) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	text, err := render(a.tmpl, newTemplateData(event, state))
	if err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	return a.Emit(events.NewReply(a.Source, a.Channel, text))
}

// SetState stores rendered values in the chain State for later Actions.
type SetState struct {
	core.OutputBinding
	Values map[string]string `yaml:"values"`

	tmpls map[string]*template.Template
}

func (*SetState) ConsumesInputs() core.TypeSet { return anyInput() }

func (*SetState) ProducesOutputs() core.TypeSet { return core.Types() }

func (s *SetState) Validate() error {
	if len(s.Values) == 0 {
		return errors.New("values must not be empty")
	}
	s.tmpls = make(map[string]*template.Template, len(s.Values))
	for _, key := range slices.Sorted(maps.Keys(s.Values)) {
		t, err := parseTemplate(key, s.Values[key])
		if err != nil {
			return fmt.Errorf("value %s: %w", key, err)
		}
		s.tmpls[key] = t
	}
	return nil
}

// Keys are rendered in sorted order, each seeing the ones before it.
func (s *SetState) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	for _, key := range slices.Sorted(maps.Keys(s.tmpls)) {
		v, err := render(s.tmpls[key], newTemplateData(event, state))
		if err != nil {
			return fmt.Errorf("set_state %s: %w", key, err)
		}
		state.Set(key, v)
	}
	return nil
}

// Log writes a rendered line to the bot's log.
type Log struct {
	core.OutputBinding
	Message string `yaml:"message"`
	Level   string `yaml:"level"`

	tmpl   *template.Template
	level  slog.Level
	logger *slog.Logger
}

func (*Log) ConsumesInputs() core.TypeSet { return anyInput() }

func (*Log) ProducesOutputs() core.TypeSet { return core.Types() }

func (l *Log) Validate() error {
	if l.Message == "" {
		l.Message = "{{printf \"%T\" .Event}} {{.Text}}"
	}
	t, err := parseTemplate("log", l.Message)
	if err != nil {
		return err
	}
	l.tmpl = t
	level := l.Level
	if level == "" {
		level = "info"
	}
	if err := l.level.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid level %q", l.Level)
	}
	return nil
}

func (l *Log) Init(deps loader.Dependencies) error {
	l.logger = deps.Logger
	return nil
}

func (l *Log) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	msg, err := render(l.tmpl, newTemplateData(event, state))
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, l.level, msg, "component", "log_action")
	return nil
}

// storeAction is embedded by the Actions that need a Store.
type storeAction struct {
	core.OutputBinding
	store store.Store
}

func (*storeAction) ProducesOutputs() core.TypeSet { return core.Types() }

func (s *storeAction) Init(deps loader.Dependencies) error {
	if deps.Store == nil {
		return errors.New("a store is required")
	}
	s.store = deps.Store
	return nil
}

// Persist saves every message to the store.
type Persist struct {
	storeAction
}

func (*Persist) ConsumesInputs() core.TypeSet { return messages() }

func (p *Persist) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	msg, ok := event.(events.Message)
	if !ok {
		return fmt.Errorf("persist: %T is not a message", event)
	}
	return p.store.SaveRecord(ctx, store.Record{
		Source:  msg.MessageSource(),
		Channel: msg.MessageChannel(),
		Sender:  msg.MessageSender(),
		Text:    msg.MessageText(),
	})
}

// History loads the most recent stored messages of the same channel into
// the State under Key.
type History struct {
	storeAction
	Limit int    `yaml:"limit"`
	Key   string `yaml:"key"`
}

func (*History) ConsumesInputs() core.TypeSet { return messages() }

func (h *History) Validate() error {
	if h.Limit == 0 {
		h.Limit = 10
	}
	if h.Limit < 0 {
		return errors.New("limit must be positive")
	}
	if h.Key == "" {
		h.Key = "history"
	}
	return nil
}

func (h *History) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	msg, ok := event.(events.Message)
	if !ok {
		return fmt.Errorf("history: %T is not a message", event)
	}
	recs, err := h.store.History(ctx, msg.MessageSource(), msg.MessageChannel(), h.Limit)
	if err != nil {
		return err
	}
	state.Set(h.Key, recs)
	return nil
}

// Count increments a stored counter and puts the new value in the State.
// Scope selects one counter for everything, or one per sender or channel.
type Count struct {
	storeAction
	Counter  string `yaml:"counter"`
	Scope    string `yaml:"scope"`
	StateKey string `yaml:"state_key"`
}

func (*Count) ConsumesInputs() core.TypeSet { return anyInput() }

func (c *Count) Validate() error {
	if c.Counter == "" {
		return errors.New("counter is required")
	}
	if err := validateScope(&c.Scope); err != nil {
		return err
	}
	if c.StateKey == "" {
		c.StateKey = "count"
	}
	return nil
}

func validateScope(scope *string) error {
	switch *scope {
	case "":
		*scope = "global"
	case "global", "sender", "channel":
	default:
		return fmt.Errorf("scope must be global, sender or channel, got %q", *scope)
	}
	return nil
}

// scopeKey names the store scope for event: one for everything, or one per
// sender or channel of a message.
func scopeKey(scope string, event core.InputEvent) (string, error) {
	if scope == "global" || scope == "" {
		return "global", nil
	}
	msg, ok := event.(events.Message)
	if !ok {
		return "", fmt.Errorf("%s scope needs a message, got %T", scope, event)
	}
	if scope == "sender" {
		return "sender:" + msg.MessageSource() + ":" + msg.MessageSender(), nil
	}
	return "channel:" + msg.MessageSource() + ":" + msg.MessageChannel(), nil
}

func (c *Count) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	scope, err := scopeKey(c.Scope, event)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	n, err := c.store.Increment(ctx, scope, c.Counter, 1)
	if err != nil {
		return err
	}
	state.Set(c.StateKey, n)
	return nil
}

// Remember stores a rendered value as a fact under Key.
type Remember struct {
	storeAction
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	Scope string `yaml:"scope"`

	tmpl *template.Template
}

func (*Remember) ConsumesInputs() core.TypeSet { return anyInput() }

func (r *Remember) Validate() error {
	var errs []error
	if r.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if t, err := parseTemplate("remember", r.Value); err != nil {
		errs = append(errs, fmt.Errorf("value: %w", err))
	} else {
		r.tmpl = t
	}
	errs = append(errs, validateScope(&r.Scope))
	return errors.Join(errs...)
}

func (r *Remember) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	scope, err := scopeKey(r.Scope, event)
	if err != nil {
		return fmt.Errorf("remember: %w", err)
	}
	value, err := render(r.tmpl, newTemplateData(event, state))
	if err != nil {
		return fmt.Errorf("remember: %w", err)
	}
	return r.store.SetFact(ctx, scope, r.Key, value)
}

// Recall loads a fact into the State under StateKey, or Default when none
// was stored.
type Recall struct {
	storeAction
	Key      string `yaml:"key"`
	Scope    string `yaml:"scope"`
	StateKey string `yaml:"state_key"`
	Default  string `yaml:"default"`
}

func (*Recall) ConsumesInputs() core.TypeSet { return anyInput() }

func (r *Recall) Validate() error {
	if r.Key == "" {
		return errors.New("key is required")
	}
	if r.StateKey == "" {
		r.StateKey = r.Key
	}
	return validateScope(&r.Scope)
}

func (r *Recall) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	scope, err := scopeKey(r.Scope, event)
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}
	value, ok, err := r.store.GetFact(ctx, scope, r.Key)
	if err != nil {
		return err
	}
	if !ok {
		value = r.Default
	}
	state.Set(r.StateKey, value)
	return nil
}

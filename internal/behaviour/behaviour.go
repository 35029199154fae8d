// Package behaviour provides the standard core.Behaviour: any Trigger
// activates it, every Condition must allow the event, then the Actions run
// in the order they were added.
package behaviour

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mewbot/internal/core"
)

// Outcome is the terminal state of one Process call.
type Outcome int

const (
	// Dropped means no Trigger matched.
	Dropped Outcome = iota
	// Filtered means a Condition denied the event.
	Filtered
	// Complete means the Action chain ran.
	Complete
)

func (o Outcome) String() string {
	switch o {
	case Dropped:
		return "dropped"
	case Filtered:
		return "filtered"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Observer is told the outcome of every Process call.
type Observer func(name string, outcome Outcome, err error)

// Option configures a Behaviour.
type Option func(*Behaviour)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Behaviour) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithObserver registers a hook called after every Process call.
func WithObserver(o Observer) Option {
	return func(b *Behaviour) {
		b.observer = o
	}
}

// Behaviour is safe for concurrent Process calls. Each call gets its own
// core.State.
type Behaviour struct {
	name       string
	mu         sync.RWMutex
	triggers   []core.Trigger
	conditions []core.Condition
	actions    []core.Action
	output     *core.OutputQueue
	logger     *slog.Logger
	observer   Observer
}

var _ core.Behaviour = (*Behaviour)(nil)

// New creates an empty Behaviour. With no Triggers it drops every event.
func New(name string, opts ...Option) *Behaviour {
	b := &Behaviour{
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("behaviour", name)
	return b
}

// Name returns the name given to New.
func (b *Behaviour) Name() string {
	return b.name
}

// Add appends a Trigger, Condition or Action. A value implementing more than
// one of them is added to each matching list. An Action added after
// BindOutput is bound immediately.
func (b *Behaviour) Add(component core.Component) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := false
	if t, ok := component.(core.Trigger); ok {
		b.triggers = append(b.triggers, t)
		added = true
	}
	if c, ok := component.(core.Condition); ok {
		b.conditions = append(b.conditions, c)
		added = true
	}
	if a, ok := component.(core.Action); ok {
		if b.output != nil {
			if err := a.Bind(b.output); err != nil {
				return fmt.Errorf("failed to bind action: %w", err)
			}
		}
		b.actions = append(b.actions, a)
		added = true
	}
	if !added {
		return fmt.Errorf("%w: %T", core.ErrUnsupportedComponent, component)
	}
	return nil
}

// ConsumesInputs returns the union of the Triggers' input types.
func (b *Behaviour) ConsumesInputs() core.TypeSet {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := core.Types()
	for _, t := range b.triggers {
		out = out.Union(t.ConsumesInputs())
	}
	return out
}

// ProducesOutputs returns the union of the Actions' output types.
func (b *Behaviour) ProducesOutputs() core.TypeSet {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := core.Types()
	for _, a := range b.actions {
		out = out.Union(a.ProducesOutputs())
	}
	return out
}

// BindOutput binds queue to every Action.
func (b *Behaviour) BindOutput(queue *core.OutputQueue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.output != nil {
		return core.ErrAlreadyBound
	}
	for i, a := range b.actions {
		if err := a.Bind(queue); err != nil {
			return fmt.Errorf("failed to bind action %d (%T): %w", i, a, err)
		}
	}
	b.output = queue
	return nil
}

// Process runs the event through the Behaviour. See Handle.
func (b *Behaviour) Process(ctx context.Context, event core.InputEvent) error {
	_, err := b.Handle(ctx, event)
	return err
}

// Handle runs the event through the Behaviour and reports where it stopped.
// Every Action is attempted even if an earlier one fails; their errors are
// joined. A cancelled context stops the chain before the next Action.
func (b *Behaviour) Handle(ctx context.Context, event core.InputEvent) (Outcome, error) {
	b.mu.RLock()
	triggers := b.triggers
	conditions := b.conditions
	actions := b.actions
	b.mu.RUnlock()

	outcome, err := b.handle(ctx, event, triggers, conditions, actions)
	if b.observer != nil {
		b.observer(b.name, outcome, err)
	}
	return outcome, err
}

func (b *Behaviour) handle(
	ctx context.Context,
	event core.InputEvent,
	triggers []core.Trigger,
	conditions []core.Condition,
	actions []core.Action,
) (Outcome, error) {
	if !anyTriggerMatches(triggers, event) {
		b.logger.Debug("event dropped", "event", fmt.Sprintf("%T", event))
		return Dropped, nil
	}

	// A Condition that does not look at this event type has no say in it.
	for _, c := range conditions {
		if !c.ConsumesInputs().Accepts(event) {
			continue
		}
		if !c.Allows(event) {
			b.logger.Debug("event filtered", "event", fmt.Sprintf("%T", event), "condition", fmt.Sprintf("%T", c))
			return Filtered, nil
		}
	}

	state := core.NewState()
	var errs []error
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := a.Act(ctx, event, state); err != nil {
			b.logger.Error("action failed", "index", i, "action", fmt.Sprintf("%T", a), "error", err)
			errs = append(errs, fmt.Errorf("action %d (%T): %w", i, a, err))
		}
	}

	return Complete, errors.Join(errs...)
}

func anyTriggerMatches(triggers []core.Trigger, event core.InputEvent) bool {
	for _, t := range triggers {
		if t.ConsumesInputs().Accepts(event) && t.Matches(event) {
			return true
		}
	}
	return false
}

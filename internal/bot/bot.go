// Package bot hosts a set of IOConfigs and Behaviours: it binds the shared
// queues, runs every Input, and dispatches events from the input queue to
// Behaviours and from the output queue to Outputs.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"mewbot/internal/behaviour"
	"mewbot/internal/core"
	"mewbot/internal/metrics"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("bot is already running")

// Named is implemented by components that want a readable name in logs and
// metrics instead of their Go type.
type Named interface {
	Name() string
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records dispatch metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithDrainTimeout bounds how long Run keeps dispatching queued events after
// its context is cancelled. The default is five seconds.
func WithDrainTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.drainTimeout = d
	}
}

// Bot is a configured set of components.
type Bot struct {
	name         string
	mu           sync.RWMutex
	ioConfigs    []core.IOConfig
	behaviours   []core.Behaviour
	logger       *slog.Logger
	metrics      *metrics.Metrics
	drainTimeout time.Duration
	running      atomic.Bool
}

// New creates an empty Bot.
func New(name string, opts ...Option) *Bot {
	b := &Bot{
		name:         name,
		logger:       slog.Default(),
		drainTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("bot", name)
	return b
}

// Name returns the name given to New.
func (b *Bot) Name() string {
	return b.name
}

// AddIOConfig adds the Inputs and Outputs of cfg.
func (b *Bot) AddIOConfig(cfg core.IOConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ioConfigs = append(b.ioConfigs, cfg)
}

// AddBehaviour adds a Behaviour.
func (b *Bot) AddBehaviour(bh core.Behaviour) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.behaviours = append(b.behaviours, bh)
}

// IOConfigs returns the configured IOConfigs.
func (b *Bot) IOConfigs() []core.IOConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.IOConfig(nil), b.ioConfigs...)
}

// Behaviours returns the configured Behaviours.
func (b *Bot) Behaviours() []core.Behaviour {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Behaviour(nil), b.behaviours...)
}

// Inputs collects the Inputs of every IOConfig.
func (b *Bot) Inputs() []core.Input {
	var out []core.Input
	for _, cfg := range b.IOConfigs() {
		out = append(out, cfg.Inputs()...)
	}
	return out
}

// Outputs collects the Outputs of every IOConfig.
func (b *Bot) Outputs() []core.Output {
	var out []core.Output
	for _, cfg := range b.IOConfigs() {
		out = append(out, cfg.Outputs()...)
	}
	return out
}

type outputProducer interface {
	ProducesOutputs() core.TypeSet
}

// Validate checks the declared event types of the components against each
// other and returns a warning for every mismatch. None of them stop the bot
// from running.
func (b *Bot) Validate() []string {
	var warnings []string
	inputs := b.Inputs()
	outputs := b.Outputs()
	behaviours := b.Behaviours()

	for i, bh := range behaviours {
		name := componentName(bh, i)
		if bh.ConsumesInputs().Len() == 0 {
			warnings = append(warnings, fmt.Sprintf("behaviour %s has no triggers and will never run", name))
		}
		p, ok := bh.(outputProducer)
		if !ok {
			continue
		}
		for _, t := range p.ProducesOutputs().Types() {
			if !anyOutputFor(outputs, t) {
				warnings = append(warnings, fmt.Sprintf("behaviour %s can emit %s but no output consumes it", name, t))
			}
		}
	}

	for i, in := range inputs {
		for _, t := range in.ProducesInputs().Types() {
			if !anyBehaviourFor(behaviours, t) {
				warnings = append(warnings, fmt.Sprintf("input %s produces %s but no behaviour consumes it", componentName(in, i), t))
			}
		}
	}

	return warnings
}

func anyOutputFor(outputs []core.Output, t reflect.Type) bool {
	for _, o := range outputs {
		if o.ConsumesOutputs().Overlaps(core.Types(t)) {
			return true
		}
	}
	return false
}

func anyBehaviourFor(behaviours []core.Behaviour, t reflect.Type) bool {
	for _, bh := range behaviours {
		if bh.ConsumesInputs().Overlaps(core.Types(t)) {
			return true
		}
	}
	return false
}

// Run binds the queues, starts every Input and dispatches events until ctx
// is cancelled. Events already queued at that point are still dispatched,
// for at most the drain timeout.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	inputs := b.Inputs()
	outputs := b.Outputs()
	behaviours := b.Behaviours()

	inputQueue := core.NewInputQueue()
	outputQueue := core.NewOutputQueue()

	for i, in := range inputs {
		if err := in.Bind(inputQueue); err != nil {
			return fmt.Errorf("failed to bind input %s: %w", componentName(in, i), err)
		}
	}
	for i, bh := range behaviours {
		if err := bh.BindOutput(outputQueue); err != nil {
			return fmt.Errorf("failed to bind behaviour %s: %w", componentName(bh, i), err)
		}
	}
	for _, w := range b.Validate() {
		b.logger.Warn(w)
	}

	// Dispatch outlives ctx so queued events can drain.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	b.logger.Info("bot starting", "inputs", len(inputs), "outputs", len(outputs), "behaviours", len(behaviours))

	var inputsWG sync.WaitGroup
	for i, in := range inputs {
		inputsWG.Add(1)
		go func(i int, in core.Input) {
			defer inputsWG.Done()
			b.runInput(ctx, componentName(in, i), in)
		}(i, in)
	}

	inputLoopDone := make(chan struct{})
	outputLoopDone := make(chan struct{})
	go func() {
		defer close(inputLoopDone)
		b.dispatchInputs(workCtx, inputQueue, behaviours)
	}()
	go func() {
		defer close(outputLoopDone)
		b.dispatchOutputs(workCtx, outputQueue, outputs)
	}()

	<-ctx.Done()
	b.logger.Info("bot stopping, draining queues", "pending_inputs", inputQueue.Len(), "pending_outputs", outputQueue.Len())
	timer := time.AfterFunc(b.drainTimeout, cancelWork)
	defer timer.Stop()

	waitOrDone(&inputsWG, workCtx)
	inputQueue.Close()
	<-inputLoopDone
	outputQueue.Close()
	<-outputLoopDone

	b.logger.Info("bot stopped")
	return nil
}

func waitOrDone(wg *sync.WaitGroup, ctx context.Context) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (b *Bot) runInput(ctx context.Context, name string, in core.Input) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("input panicked", "input", name, "panic", r)
			b.countInputFailure(name)
		}
	}()

	b.logger.Debug("input starting", "input", name)
	err := in.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("input stopped", "input", name, "error", err)
		b.countInputFailure(name)
		return
	}
	b.logger.Debug("input finished", "input", name)
}

func (b *Bot) countInputFailure(name string) {
	if b.metrics != nil {
		b.metrics.InputFailures.WithLabelValues(name).Inc()
	}
}

// dispatchInputs hands each event to every Behaviour that consumes its type.
// Matching Behaviours run concurrently, but the next event is not taken off
// the queue until they are all done, so each Behaviour sees events in queue
// order.
func (b *Bot) dispatchInputs(ctx context.Context, queue *core.InputQueue, behaviours []core.Behaviour) {
	for {
		event, err := queue.Get(ctx)
		if err != nil {
			return
		}
		if b.metrics != nil {
			b.metrics.InputEvents.WithLabelValues(typeName(event)).Inc()
			b.metrics.QueueDepth.WithLabelValues("input").Set(float64(queue.Len()))
		}

		var wg sync.WaitGroup
		for i, bh := range behaviours {
			if !bh.ConsumesInputs().Accepts(event) {
				continue
			}
			wg.Add(1)
			go func(name string, bh core.Behaviour) {
				defer wg.Done()
				b.process(ctx, name, bh, event)
			}(componentName(bh, i), bh)
		}
		wg.Wait()
	}
}

type outcomeHandler interface {
	Handle(ctx context.Context, event core.InputEvent) (behaviour.Outcome, error)
}

func (b *Bot) process(ctx context.Context, name string, bh core.Behaviour, event core.InputEvent) {
	if b.metrics != nil {
		b.metrics.BehavioursInFlight.Inc()
		defer b.metrics.BehavioursInFlight.Dec()
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("behaviour panicked", "behaviour", name, "panic", r)
			if b.metrics != nil {
				b.metrics.ObserveOutcome(name, "panic", true)
			}
		}
	}()

	if h, ok := bh.(outcomeHandler); ok {
		outcome, err := h.Handle(ctx, event)
		if err != nil {
			b.logger.Error("behaviour failed", "behaviour", name, "error", err)
		}
		if b.metrics != nil {
			b.metrics.ObserveOutcome(name, outcome.String(), err != nil)
		}
		return
	}

	err := bh.Process(ctx, event)
	if err != nil {
		b.logger.Error("behaviour failed", "behaviour", name, "error", err)
	}
	if b.metrics != nil {
		b.metrics.ObserveOutcome(name, "processed", err != nil)
	}
}

// dispatchOutputs hands each event to every Output that consumes its type.
func (b *Bot) dispatchOutputs(ctx context.Context, queue *core.OutputQueue, outputs []core.Output) {
	for {
		event, err := queue.Get(ctx)
		if err != nil {
			return
		}
		if b.metrics != nil {
			b.metrics.OutputEvents.WithLabelValues(typeName(event)).Inc()
			b.metrics.QueueDepth.WithLabelValues("output").Set(float64(queue.Len()))
		}

		var wg sync.WaitGroup
		matched := false
		for i, out := range outputs {
			if !out.ConsumesOutputs().Accepts(event) {
				continue
			}
			matched = true
			wg.Add(1)
			go func(name string, out core.Output) {
				defer wg.Done()
				b.deliver(ctx, name, out, event)
			}(componentName(out, i), out)
		}
		wg.Wait()

		if !matched {
			b.logger.Warn("no output for event", "event", typeName(event))
		}
	}
}

func (b *Bot) deliver(ctx context.Context, name string, out core.Output, event core.OutputEvent) {
	delivered := false
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("output panicked", "output", name, "panic", r)
		}
		if b.metrics != nil {
			b.metrics.ObserveDelivery(name, delivered)
		}
	}()

	delivered = out.Output(ctx, event)
	if !delivered {
		b.logger.Warn("output did not deliver event", "output", name, "event", typeName(event))
	}
}

func componentName(c any, index int) string {
	if n, ok := c.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T#%d", c, index)
}

func typeName(v any) string {
	return reflect.TypeOf(v).String()
}

package core

import "context"

// IOConfig is a loadable component with the configuration for one external
// system. It provides the Inputs and Outputs that connect the bot to that
// system through the event queues.
//
// For example, an IOConfig for a chat service takes one set of credentials
// and provides an Input that reads messages and an Output that sends them.
type IOConfig interface {
	// Inputs returns the Inputs that read events from the service, if any.
	Inputs() []Input
	// Outputs returns the Outputs that send events to the service, if any.
	Outputs() []Output
}

// Input connects to a system, ingests events and puts them on the bot's
// InputQueue.
type Input interface {
	// ProducesInputs lists the event types this Input can produce. The result
	// must not depend on instance state.
	ProducesInputs() TypeSet

	// Bind attaches the shared input queue. It is called once, before Run.
	Bind(queue *InputQueue) error

	// Run interacts with the service until ctx is done. The Input must not
	// attach to the service before Run is called. Run is executed in its own
	// goroutine, possibly on a different goroutine than the constructor.
	Run(ctx context.Context) error
}

// Output sends events taken off the OutputQueue to a service. The bot passes
// an event to every Output that declares it can consume its type.
type Output interface {
	// ConsumesOutputs lists the event types this Output can send.
	ConsumesOutputs() TypeSet

	// Output sends event to the service and reports whether it was
	// delivered. A false result is informational; nothing retries it.
	Output(ctx context.Context, event OutputEvent) bool
}

// Trigger determines if a Behaviour is activated for an event. A Behaviour
// activates when any of its Triggers match.
//
// Triggers should stay simple. Filtering is the role of Conditions.
type Trigger interface {
	// ConsumesInputs lists the event types this Trigger looks at. Events of
	// other types are skipped without calling Matches.
	ConsumesInputs() TypeSet

	// Matches reports whether event activates the Behaviour. It must not
	// have side effects.
	Matches(event InputEvent) bool
}

// Condition decides whether an event accepted by a Behaviour's Triggers is
// passed to its Actions. The Behaviour proceeds only if every Condition
// allows the event.
//
// The runtime may fail fast, so a Condition will not necessarily see every
// event.
type Condition interface {
	// ConsumesInputs lists the event types this Condition looks at.
	ConsumesInputs() TypeSet

	// Allows reports whether event is kept. It must not have side effects.
	Allows(event InputEvent) bool
}

// Action runs when a Behaviour is triggered and all its Conditions allow the
// event. Actions run in the order they were added and may interact with data
// stores, emit OutputEvents, and add data to the State seen by later Actions.
type Action interface {
	// ConsumesInputs lists the event types this Action accepts.
	ConsumesInputs() TypeSet

	// ProducesOutputs lists the event types this Action can emit. It is used
	// to check that a configured bot has Outputs for them; it is not
	// enforced when the Action runs.
	ProducesOutputs() TypeSet

	// Bind attaches the shared output queue. It is called once.
	Bind(queue *OutputQueue) error

	// Act performs the action. state holds whatever earlier Actions in the
	// same chain stored for this event; changes are visible to the Actions
	// that follow. Nothing stops later Actions from running.
	Act(ctx context.Context, event InputEvent, state *State) error
}

// Behaviour bundles Triggers, Conditions and an ordered list of Actions, and
// processes one event end to end.
type Behaviour interface {
	// Add appends a Trigger, Condition or Action. Actions run in the order
	// they are added.
	Add(component Component) error

	// ConsumesInputs is the union of the types accepted by the Triggers. An
	// event in this set is not guaranteed to activate the Behaviour.
	ConsumesInputs() TypeSet

	// BindOutput binds queue to every Action of the Behaviour.
	BindOutput(queue *OutputQueue) error

	// Process checks the Triggers, then the Conditions, then runs the
	// Actions in order.
	Process(ctx context.Context, event InputEvent) error
}

// Component is any value implementing one of IOConfig, Trigger, Condition,
// Action or Behaviour.
type Component = any

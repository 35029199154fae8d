// Package core holds the contracts every mewbot component is written against:
// the event types, the two event queues, the component interfaces, and the
// declarative config schema used to describe a bot.
package core

// InputEvent is implemented by every event an Input puts on the InputQueue.
// Events are processed by Behaviours and must be immutable once constructed.
//
// Concrete events embed BaseInputEvent and are passed around by value.
type InputEvent interface {
	inputEvent()
}

// OutputEvent is implemented by every event an Action puts on the OutputQueue.
// Outputs receive the events whose type they declare in ConsumesOutputs.
//
// Concrete events embed BaseOutputEvent and are passed around by value.
type OutputEvent interface {
	outputEvent()
}

// BaseInputEvent carries no data. Embed it to make a struct an InputEvent.
type BaseInputEvent struct{}

func (BaseInputEvent) inputEvent() {}

// BaseOutputEvent carries no data. Embed it to make a struct an OutputEvent.
type BaseOutputEvent struct{}

func (BaseOutputEvent) outputEvent() {}

// InputQueue carries InputEvents from every Input to the dispatcher.
type InputQueue = Queue[InputEvent]

// OutputQueue carries OutputEvents from every Action to the dispatcher.
type OutputQueue = Queue[OutputEvent]

// NewInputQueue creates an empty InputQueue.
func NewInputQueue() *InputQueue {
	return NewQueue[InputEvent]()
}

// NewOutputQueue creates an empty OutputQueue.
func NewOutputQueue() *OutputQueue {
	return NewQueue[OutputEvent]()
}

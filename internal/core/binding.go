package core

import "sync"

// InputBinding implements the bind-once half of Input. Embed it in an Input
// and call Emit to publish events.
type InputBinding struct {
	mu    sync.RWMutex
	queue *InputQueue
}

// Bind attaches queue. A second call returns ErrAlreadyBound.
func (b *InputBinding) Bind(queue *InputQueue) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queue != nil {
		return ErrAlreadyBound
	}
	b.queue = queue
	return nil
}

// Bound reports whether a queue has been attached.
func (b *InputBinding) Bound() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue != nil
}

// Emit puts event on the bound queue.
func (b *InputBinding) Emit(event InputEvent) error {
	b.mu.RLock()
	q := b.queue
	b.mu.RUnlock()
	if q == nil {
		return ErrNotBound
	}
	return q.Put(event)
}

// OutputBinding implements the bind-once half of Action. Embed it in an
// Action and call Emit to publish events.
type OutputBinding struct {
	mu    sync.RWMutex
	queue *OutputQueue
}

// Bind attaches queue. A second call returns ErrAlreadyBound.
func (b *OutputBinding) Bind(queue *OutputQueue) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queue != nil {
		return ErrAlreadyBound
	}
	b.queue = queue
	return nil
}

// Bound reports whether a queue has been attached.
func (b *OutputBinding) Bound() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue != nil
}

// Emit puts event on the bound queue.
func (b *OutputBinding) Emit(event OutputEvent) error {
	b.mu.RLock()
	q := b.queue
	b.mu.RUnlock()
	if q == nil {
		return ErrNotBound
	}
	return q.Put(event)
}

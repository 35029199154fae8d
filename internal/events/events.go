// Package events defines the platform-neutral events shared by the built-in
// components. Chat adapters embed MessageEvent in their own event types, so a
// component declaring the Message interface accepts messages from any
// platform.
package events

import (
	"sort"
	"sync"
	"time"

	"mewbot/internal/core"
)

// Message is implemented by every chat message event.
type Message interface {
	core.InputEvent
	MessageText() string
	MessageSender() string
	MessageChannel() string
	MessageSource() string
	// Reply builds the platform's own reply event for this message.
	Reply(text string) core.OutputEvent
}

// MessageEvent is the generic part of a chat message.
type MessageEvent struct {
	core.BaseInputEvent
	ID       string
	Source   string // adapter name, e.g. "slack"
	Channel  string
	Sender   string
	Text     string
	Received time.Time
}

func (e MessageEvent) MessageText() string    { return e.Text }
func (e MessageEvent) MessageSender() string  { return e.Sender }
func (e MessageEvent) MessageChannel() string { return e.Channel }
func (e MessageEvent) MessageSource() string  { return e.Source }

// Reply returns a generic ReplyEvent. Platform events override it.
func (e MessageEvent) Reply(text string) core.OutputEvent {
	return ReplyEvent{Source: e.Source, Channel: e.Channel, Text: text}
}

// ReplyEvent is a platform-neutral outgoing message.
type ReplyEvent struct {
	core.BaseOutputEvent
	Source  string
	Channel string
	Text    string
}

// Tick is implemented by timer events.
type Tick interface {
	core.InputEvent
	TickName() string
	TickTime() time.Time
}

// TickEvent is the generic part of a timer event.
type TickEvent struct {
	core.BaseInputEvent
	Name string
	At   time.Time
}

func (e TickEvent) TickName() string     { return e.Name }
func (e TickEvent) TickTime() time.Time { return e.At }

var (
	replyMu       sync.RWMutex
	replyBuilders = map[string]func(channel, text string) core.OutputEvent{}
)

// RegisterReply installs the constructor of a platform's reply event. Chat
// adapters call it from init so messages can be sent to them without an
// incoming message to reply to.
func RegisterReply(source string, build func(channel, text string) core.OutputEvent) {
	replyMu.Lock()
	defer replyMu.Unlock()
	replyBuilders[source] = build
}

// NewReply builds the reply event of the platform registered for source, or
// a generic ReplyEvent when none is.
func NewReply(source, channel, text string) core.OutputEvent {
	replyMu.RLock()
	build, ok := replyBuilders[source]
	replyMu.RUnlock()
	if !ok {
		return ReplyEvent{Source: source, Channel: channel, Text: text}
	}
	return build(channel, text)
}

// ReplySources lists the registered sources.
func ReplySources() []string {
	replyMu.RLock()
	defer replyMu.RUnlock()
	out := make([]string, 0, len(replyBuilders))
	for s := range replyBuilders {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

package components

import (
	"errors"
	"slices"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// SenderNot drops messages from the listed senders, such as the bot itself.
type SenderNot struct {
	Senders []string `yaml:"senders"`
}

func (*SenderNot) ConsumesInputs() core.TypeSet { return messages() }

func (c *SenderNot) Allows(event core.InputEvent) bool {
	msg, ok := event.(events.Message)
	if !ok {
		return true
	}
	return !slices.Contains(c.Senders, msg.MessageSender())
}

// SenderIn keeps only messages from the listed senders.
type SenderIn struct {
	Senders []string `yaml:"senders"`
}

func (*SenderIn) ConsumesInputs() core.TypeSet { return messages() }

func (c *SenderIn) Validate() error {
	if len(c.Senders) == 0 {
		return errors.New("senders must not be empty")
	}
	return nil
}

func (c *SenderIn) Allows(event core.InputEvent) bool {
	msg, ok := event.(events.Message)
	return ok && slices.Contains(c.Senders, msg.MessageSender())
}

// ChannelIn keeps only messages posted in the listed channels. Source, when
// set, also restricts the platform.
type ChannelIn struct {
	Channels []string `yaml:"channels"`
	Source   string   `yaml:"source"`
}

func (*ChannelIn) ConsumesInputs() core.TypeSet { return messages() }

func (c *ChannelIn) Validate() error {
	if len(c.Channels) == 0 {
		return errors.New("channels must not be empty")
	}
	return nil
}

func (c *ChannelIn) Allows(event core.InputEvent) bool {
	msg, ok := event.(events.Message)
	if !ok {
		return false
	}
	if c.Source != "" && msg.MessageSource() != c.Source {
		return false
	}
	return slices.Contains(c.Channels, msg.MessageChannel())
}

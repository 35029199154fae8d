// Package discordio connects a bot to Discord through the gateway, or sends
// replies through a channel webhook when a webhook_url is configured.
package discordio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// Source is the MessageSource of Discord events.
const Source = "discord"

// MessageEvent is a message posted in a channel the bot can read.
type MessageEvent struct {
	events.MessageEvent
	GuildID string
	Bot     bool
}

// Reply answers with a Discord reply referencing the original message.
func (e MessageEvent) Reply(text string) core.OutputEvent {
	return ReplyEvent{
		ReplyEvent: events.ReplyEvent{Source: Source, Channel: e.Channel, Text: text},
		ReplyTo:    e.ID,
		GuildID:    e.GuildID,
	}
}

// ReplyEvent is sent to Discord. ReplyTo, when set, is the message answered.
type ReplyEvent struct {
	events.ReplyEvent
	ReplyTo string
	GuildID string
}

func init() {
	events.RegisterReply(Source, func(channel, text string) core.OutputEvent {
		return ReplyEvent{ReplyEvent: events.ReplyEvent{Source: Source, Channel: channel, Text: text}}
	})
}

// Config is the Discord IOConfig. The token falls back to DISCORD_BOT_TOKEN
// and the channel to DISCORD_CHANNEL_ID. A config with a webhook_url posts
// through the webhook and has no input; it does not read DISCORD_BOT_TOKEN.
type Config struct {
	Token      string `yaml:"token"`
	Channel    string `yaml:"channel"`
	WebhookURL string `yaml:"webhook_url"`

	once    sync.Once
	err     error
	inputs  []core.Input
	outputs []core.Output
}

func (c *Config) resolved() (token, channel string) {
	token, channel = c.Token, c.Channel
	if token == "" && c.WebhookURL == "" {
		token = os.Getenv("DISCORD_BOT_TOKEN")
	}
	if channel == "" {
		channel = os.Getenv("DISCORD_CHANNEL_ID")
	}
	return token, channel
}

// Validate requires either a bot token or a webhook URL, and builds the
// session or webhook client.
func (c *Config) Validate() error {
	if c.Token != "" && c.WebhookURL != "" {
		return errors.New("discord token and webhook_url are mutually exclusive")
	}
	token, _ := c.resolved()
	if token == "" && c.WebhookURL == "" {
		return errors.New("discord needs a bot token (token or DISCORD_BOT_TOKEN) or a webhook_url")
	}
	return c.build()
}

// checkToken rejects values that cannot be a bot token: Discord tokens are
// three non-empty dot-separated parts, given without the "Bot " prefix.
func checkToken(token string) error {
	if strings.HasPrefix(token, "Bot ") {
		return errors.New(`discord token must not include the "Bot " prefix`)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || slices.Contains(parts, "") || strings.ContainsAny(token, " \t\n") {
		return errors.New("discord token is malformed")
	}
	return nil
}

func checkWebhook(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("discord webhook_url: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("discord webhook_url %q must be an http(s) URL", raw)
	}
	return nil
}

func (c *Config) build() error {
	c.once.Do(func() {
		token, channel := c.resolved()
		if token == "" {
			if c.err = checkWebhook(c.WebhookURL); c.err == nil {
				c.outputs = []core.Output{NewWebhookOutput(c.WebhookURL)}
			}
			return
		}
		if err := checkToken(token); err != nil {
			c.err = err
			return
		}
		session, err := discordgo.New("Bot " + token)
		if err != nil {
			c.err = fmt.Errorf("discord: create session: %w", err)
			return
		}
		session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
		c.inputs = []core.Input{NewInput(session)}
		c.outputs = []core.Output{NewOutput(session, channel)}
	})
	return c.err
}

// Inputs is empty for webhook configs and for configs that failed Validate.
func (c *Config) Inputs() []core.Input {
	_ = c.build()
	return c.inputs
}

func (c *Config) Outputs() []core.Output {
	_ = c.build()
	return c.outputs
}

// Gateway is the part of *discordgo.Session used by Input.
type Gateway interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// Input emits a MessageEvent for each MessageCreate seen on the gateway.
// Messages written by bots are skipped.
type Input struct {
	core.InputBinding
	gateway Gateway
	logger  *slog.Logger
}

// NewInput wraps a gateway session. The connection is opened by Run.
func NewInput(gateway Gateway) *Input {
	return &Input{gateway: gateway, logger: slog.Default().With("component", "discord")}
}

func (*Input) Name() string { return "discord-input" }

func (*Input) ProducesInputs() core.TypeSet {
	return core.Types(core.TypeOf[MessageEvent]())
}

// Run opens the gateway and keeps it open until ctx is done.
func (i *Input) Run(ctx context.Context) error {
	if !i.Bound() {
		return core.ErrNotBound
	}
	remove := i.gateway.AddHandler(i.onMessage)
	defer remove()

	if err := i.gateway.Open(); err != nil {
		return err
	}
	i.logger.Info("Connected to Discord gateway")

	<-ctx.Done()
	if err := i.gateway.Close(); err != nil {
		i.logger.Warn("Error closing Discord gateway", "error", err)
	}
	return nil
}

func (i *Input) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	received := m.Timestamp
	if received.IsZero() {
		received = time.Now()
	}
	err := i.Emit(MessageEvent{
		MessageEvent: events.MessageEvent{
			ID:       m.ID,
			Source:   Source,
			Channel:  m.ChannelID,
			Sender:   m.Author.Username,
			Text:     m.Content,
			Received: received,
		},
		GuildID: m.GuildID,
	})
	if err != nil {
		i.logger.Warn("Dropped Discord message", "id", m.ID, "error", err)
	}
}

// Sender is the part of *discordgo.Session used by Output.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Output sends ReplyEvents through the REST API.
type Output struct {
	sender         Sender
	defaultChannel string
	logger         *slog.Logger
}

// NewOutput builds an Output. defaultChannel is used for replies without a
// channel.
func NewOutput(sender Sender, defaultChannel string) *Output {
	return &Output{sender: sender, defaultChannel: defaultChannel, logger: slog.Default().With("component", "discord")}
}

func (*Output) Name() string { return "discord-output" }

func (*Output) ConsumesOutputs() core.TypeSet {
	return core.Types(core.TypeOf[ReplyEvent]())
}

func (o *Output) Output(ctx context.Context, event core.OutputEvent) bool {
	reply, ok := core.As[ReplyEvent](event)
	if !ok {
		return false
	}
	channelID := reply.Channel
	if channelID == "" {
		channelID = o.defaultChannel
	}
	if channelID == "" {
		o.logger.Warn("Dropping Discord reply without a channel")
		return false
	}

	var err error
	if reply.ReplyTo != "" {
		ref := &discordgo.MessageReference{MessageID: reply.ReplyTo, ChannelID: channelID, GuildID: reply.GuildID}
		_, err = o.sender.ChannelMessageSendReply(channelID, reply.Text, ref, discordgo.WithContext(ctx))
	} else {
		_, err = o.sender.ChannelMessageSend(channelID, reply.Text, discordgo.WithContext(ctx))
	}
	if err != nil {
		o.logger.Error("Failed to send Discord message", "channel", channelID, "error", err)
		return false
	}
	return true
}

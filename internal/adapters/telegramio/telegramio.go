// Package telegramio connects a bot to Telegram with long polling.
package telegramio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// Source is the MessageSource of Telegram events.
const Source = "telegram"

// MessageEvent is a text message from a chat. Channel holds the chat ID.
type MessageEvent struct {
	events.MessageEvent
	MessageID int
	ChatType  string
}

// Reply answers in the same chat, quoting the original message.
func (e MessageEvent) Reply(text string) core.OutputEvent {
	return ReplyEvent{
		ReplyEvent: events.ReplyEvent{Source: Source, Channel: e.Channel, Text: text},
		ReplyTo:    e.MessageID,
	}
}

// ReplyEvent is sent to a chat. Channel is a numeric chat ID or an @username.
type ReplyEvent struct {
	events.ReplyEvent
	ReplyTo int
}

func init() {
	events.RegisterReply(Source, func(channel, text string) core.OutputEvent {
		return ReplyEvent{ReplyEvent: events.ReplyEvent{Source: Source, Channel: channel, Text: text}}
	})
}

// Config is the Telegram IOConfig. The token falls back to
// TELEGRAM_BOT_TOKEN.
type Config struct {
	Token string `yaml:"token"`
	// Chat is used for replies without a chat.
	Chat string `yaml:"chat"`
	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int `yaml:"poll_timeout"`

	once    sync.Once
	err     error
	inputs  []core.Input
	outputs []core.Output
}

func (c *Config) token() string {
	if c.Token != "" {
		return c.Token
	}
	return os.Getenv("TELEGRAM_BOT_TOKEN")
}

// Validate checks the settings and creates the bot client, so a
// malformed token fails here rather than at Inputs/Outputs.
func (c *Config) Validate() error {
	if c.token() == "" {
		return errors.New("telegram bot token is required (token or TELEGRAM_BOT_TOKEN)")
	}
	if c.PollTimeout < 0 {
		return errors.New("poll_timeout must not be negative")
	}
	return c.build()
}

func (c *Config) build() error {
	c.once.Do(func() {
		bot, err := telego.NewBot(c.token())
		if err != nil {
			c.err = fmt.Errorf("telegram: create bot: %w", err)
			return
		}
		timeout := c.PollTimeout
		if timeout == 0 {
			timeout = 30
		}
		c.inputs = []core.Input{NewInput(bot, timeout)}
		c.outputs = []core.Output{NewOutput(bot, c.Chat)}
	})
	return c.err
}

// Inputs is empty when the bot client could not be created; Validate
// reports why.
func (c *Config) Inputs() []core.Input {
	_ = c.build()
	return c.inputs
}

func (c *Config) Outputs() []core.Output {
	_ = c.build()
	return c.outputs
}

// Poller is the part of *telego.Bot used by Input.
type Poller interface {
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
}

// Input emits a MessageEvent for each text message update.
type Input struct {
	core.InputBinding
	poller  Poller
	timeout int
	logger  *slog.Logger
}

// NewInput wraps a bot. Polling starts in Run.
func NewInput(poller Poller, timeoutSeconds int) *Input {
	return &Input{poller: poller, timeout: timeoutSeconds, logger: slog.Default().With("component", "telegram")}
}

func (*Input) Name() string { return "telegram-input" }

func (*Input) ProducesInputs() core.TypeSet {
	return core.Types(core.TypeOf[MessageEvent]())
}

// Run polls for updates until ctx is done.
func (i *Input) Run(ctx context.Context) error {
	if !i.Bound() {
		return core.ErrNotBound
	}
	updates, err := i.poller.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        i.timeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return err
	}
	i.logger.Info("Started Telegram long polling")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := convert(update)
			if !ok {
				continue
			}
			if err := i.Emit(msg); err != nil {
				return err
			}
		}
	}
}

func convert(update telego.Update) (MessageEvent, bool) {
	m := update.Message
	if m == nil || m.Text == "" || m.From == nil || m.From.IsBot {
		return MessageEvent{}, false
	}
	sender := m.From.Username
	if sender == "" {
		sender = strconv.FormatInt(m.From.ID, 10)
	}
	return MessageEvent{
		MessageEvent: events.MessageEvent{
			ID:       strconv.Itoa(update.UpdateID),
			Source:   Source,
			Channel:  strconv.FormatInt(m.Chat.ID, 10),
			Sender:   sender,
			Text:     m.Text,
			Received: time.Unix(m.Date, 0),
		},
		MessageID: m.MessageID,
		ChatType:  m.Chat.Type,
	}, true
}

// MessageSender is the part of *telego.Bot used by Output.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Output sends ReplyEvents.
type Output struct {
	sender      MessageSender
	defaultChat string
	logger      *slog.Logger
}

// NewOutput builds an Output. defaultChat is used for replies without a chat.
func NewOutput(sender MessageSender, defaultChat string) *Output {
	return &Output{sender: sender, defaultChat: defaultChat, logger: slog.Default().With("component", "telegram")}
}

func (*Output) Name() string { return "telegram-output" }

func (*Output) ConsumesOutputs() core.TypeSet {
	return core.Types(core.TypeOf[ReplyEvent]())
}

func (o *Output) Output(ctx context.Context, event core.OutputEvent) bool {
	reply, ok := core.As[ReplyEvent](event)
	if !ok {
		return false
	}
	chat := reply.Channel
	if chat == "" {
		chat = o.defaultChat
	}
	if chat == "" {
		o.logger.Warn("Dropping Telegram reply without a chat")
		return false
	}

	params := tu.Message(chatID(chat), reply.Text)
	if reply.ReplyTo != 0 {
		params = params.WithReplyParameters(&telego.ReplyParameters{MessageID: reply.ReplyTo})
	}
	if _, err := o.sender.SendMessage(ctx, params); err != nil {
		o.logger.Error("Failed to send Telegram message", "chat", chat, "error", err)
		return false
	}
	return true
}

func chatID(chat string) telego.ChatID {
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		return tu.ID(id)
	}
	if !strings.HasPrefix(chat, "@") {
		chat = "@" + chat
	}
	return tu.Username(chat)
}

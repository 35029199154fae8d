// Package slackio connects a bot to Slack: messages arrive over Socket Mode
// and replies are sent with chat.postMessage.
package slackio

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// Source is the MessageSource of Slack events.
const Source = "slack"

// MessageEvent is a Slack message or app mention.
type MessageEvent struct {
	events.MessageEvent
	Timestamp string
	ThreadTS  string
	Mention   bool
}

// Reply answers in the same channel, and in the same thread when the message
// was part of one.
func (e MessageEvent) Reply(text string) core.OutputEvent {
	return ReplyEvent{
		ReplyEvent: events.ReplyEvent{Source: Source, Channel: e.Channel, Text: text},
		ThreadTS:   e.ThreadTS,
	}
}

// ReplyEvent is posted to Slack.
type ReplyEvent struct {
	events.ReplyEvent
	ThreadTS string
}

func init() {
	events.RegisterReply(Source, func(channel, text string) core.OutputEvent {
		return ReplyEvent{ReplyEvent: events.ReplyEvent{Source: Source, Channel: channel, Text: text}}
	})
}

// Config is the Slack IOConfig. Tokens fall back to SLACK_BOT_USER_TOKEN and
// SLACK_APP_TOKEN.
type Config struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
	// Channel is used for replies that do not name one.
	Channel string `yaml:"channel"`
	// MentionsOnly emits app mentions instead of every channel message.
	MentionsOnly bool `yaml:"mentions_only"`

	once   sync.Once
	input  *Input
	output *Output
}

func (c *Config) tokens() (string, string) {
	bot, app := c.BotToken, c.AppToken
	if bot == "" {
		bot = os.Getenv("SLACK_BOT_USER_TOKEN")
	}
	if app == "" {
		app = os.Getenv("SLACK_APP_TOKEN")
	}
	return bot, app
}

// Validate checks that both tokens are available.
func (c *Config) Validate() error {
	bot, app := c.tokens()
	var errs []error
	if bot == "" {
		errs = append(errs, errors.New("slack bot token is required (bot_token or SLACK_BOT_USER_TOKEN)"))
	}
	if !strings.HasPrefix(app, "xapp-") {
		errs = append(errs, errors.New("slack app-level token starting with xapp- is required for socket mode (app_token or SLACK_APP_TOKEN)"))
	}
	return errors.Join(errs...)
}

func (c *Config) build() {
	c.once.Do(func() {
		bot, app := c.tokens()
		api := slack.New(bot, slack.OptionAppLevelToken(app))
		c.input = NewInput(socketmode.New(api), c.MentionsOnly)
		c.output = NewOutput(api, c.Channel)
	})
}

func (c *Config) Inputs() []core.Input {
	c.build()
	return []core.Input{c.input}
}

func (c *Config) Outputs() []core.Output {
	c.build()
	return []core.Output{c.output}
}

// Input receives events over Socket Mode.
type Input struct {
	core.InputBinding
	events       <-chan socketmode.Event
	ack          func(socketmode.Request)
	run          func(context.Context) error
	mentionsOnly bool
	logger       *slog.Logger
}

// NewInput wraps a socket mode client. The connection is opened by Run.
func NewInput(client *socketmode.Client, mentionsOnly bool) *Input {
	return &Input{
		events:       client.Events,
		ack:          func(req socketmode.Request) { client.Ack(req) },
		run:          client.RunContext,
		mentionsOnly: mentionsOnly,
		logger:       slog.Default().With("component", "slack"),
	}
}

func (*Input) Name() string { return "slack-input" }

func (*Input) ProducesInputs() core.TypeSet {
	return core.Types(core.TypeOf[MessageEvent]())
}

// Run connects to Slack and emits messages until ctx is done.
func (i *Input) Run(ctx context.Context) error {
	if !i.Bound() {
		return core.ErrNotBound
	}
	errCh := make(chan error, 1)
	go func() {
		i.logger.Info("Starting Slack Socket Mode...")
		errCh <- i.run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case evt, ok := <-i.events:
			if !ok {
				return nil
			}
			if err := i.handle(evt); err != nil {
				return err
			}
		}
	}
}

func (i *Input) handle(evt socketmode.Event) error {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		i.logger.Info("Connecting to Slack Socket Mode...")
	case socketmode.EventTypeConnectionError:
		i.logger.Warn("Connection failed. Retrying later...")
	case socketmode.EventTypeConnected:
		i.logger.Info("Connected to Slack Socket Mode via WebSocket!")
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return nil
		}
		if evt.Request != nil {
			i.ack(*evt.Request)
		}
		if eventsAPIEvent.Type != slackevents.CallbackEvent {
			return nil
		}
		if msg, ok := i.convert(eventsAPIEvent.InnerEvent.Data); ok {
			return i.Emit(msg)
		}
	}
	return nil
}

func (i *Input) convert(data any) (MessageEvent, bool) {
	switch ev := data.(type) {
	case *slackevents.MessageEvent:
		// Bot posts and edits would echo our own replies back to us.
		if i.mentionsOnly || ev.BotID != "" || ev.SubType != "" {
			return MessageEvent{}, false
		}
		return message(ev.ClientMsgID, ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp, false), true
	case *slackevents.AppMentionEvent:
		if !i.mentionsOnly || ev.BotID != "" {
			return MessageEvent{}, false
		}
		return message(ev.TimeStamp, ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp, true), true
	}
	return MessageEvent{}, false
}

func message(id, channel, user, text, ts, threadTS string, mention bool) MessageEvent {
	if id == "" {
		id = ts
	}
	return MessageEvent{
		MessageEvent: events.MessageEvent{
			ID:       id,
			Source:   Source,
			Channel:  channel,
			Sender:   user,
			Text:     text,
			Received: time.Now(),
		},
		Timestamp: ts,
		ThreadTS:  threadTS,
		Mention:   mention,
	}
}

// Poster is the part of *slack.Client used by Output.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Output posts ReplyEvents.
type Output struct {
	client         Poster
	defaultChannel string
	logger         *slog.Logger
}

// NewOutput builds an Output. defaultChannel is used for replies without a
// channel.
func NewOutput(client Poster, defaultChannel string) *Output {
	return &Output{client: client, defaultChannel: defaultChannel, logger: slog.Default().With("component", "slack")}
}

func (*Output) Name() string { return "slack-output" }

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
		o.logger.Warn("Dropping Slack reply without a channel")
		return false
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(reply.Text, false),
	}
	if reply.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(reply.ThreadTS))
	}

	if _, _, err := o.client.PostMessageContext(ctx, channelID, opts...); err != nil {
		o.logger.Error("Failed to send Slack message", "channel", channelID, "error", err)
		return false
	}
	return true
}

package slackio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

type fakeSocket struct {
	events chan socketmode.Event
	mu     sync.Mutex
	acked  []string
	runErr error
}

func newTestInput(mentionsOnly bool) (*Input, *fakeSocket) {
	fs := &fakeSocket{events: make(chan socketmode.Event, 10)}
	in := NewInput(&socketmode.Client{Events: fs.events}, mentionsOnly)
	in.ack = func(req socketmode.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.acked = append(fs.acked, req.EnvelopeID)
	}
	in.run = func(ctx context.Context) error {
		if fs.runErr != nil {
			return fs.runErr
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return in, fs
}

func callback(envelope string, data any) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Data: data},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

func next(t *testing.T, queue *core.InputQueue) MessageEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := queue.Get(ctx)
	require.NoError(t, err)
	return ev.(MessageEvent)
}

func TestInput_Messages(t *testing.T) {
	in, fs := newTestInput(false)
	queue := core.NewInputQueue()
	require.NoError(t, in.Bind(queue))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	fs.events <- socketmode.Event{Type: socketmode.EventTypeConnecting}
	fs.events <- socketmode.Event{Type: socketmode.EventTypeConnected}
	fs.events <- callback("e1", &slackevents.MessageEvent{BotID: "B1", Channel: "C1", Text: "from a bot"})
	fs.events <- callback("e2", &slackevents.MessageEvent{SubType: "message_changed", Channel: "C1", Text: "edited"})
	fs.events <- callback("e3", &slackevents.AppMentionEvent{User: "U1", Channel: "C1", Text: "<@bot> hi"})
	fs.events <- callback("e4", &slackevents.MessageEvent{
		ClientMsgID: "m-1", User: "U1", Channel: "C1", Text: "hello", TimeStamp: "1.1", ThreadTimeStamp: "0.9",
	})

	msg := next(t, queue)
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, Source, msg.MessageSource())
	assert.Equal(t, "U1", msg.MessageSender())
	assert.Equal(t, "C1", msg.MessageChannel())
	assert.Equal(t, "hello", msg.MessageText())
	assert.Equal(t, "0.9", msg.ThreadTS)
	assert.False(t, msg.Mention)
	assert.Equal(t, 0, queue.Len())

	cancel()
	require.NoError(t, <-done)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, fs.acked)
}

func TestInput_MentionsOnly(t *testing.T) {
	in, fs := newTestInput(true)
	queue := core.NewInputQueue()
	require.NoError(t, in.Bind(queue))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = in.Run(ctx) }()

	fs.events <- callback("e1", &slackevents.MessageEvent{User: "U1", Channel: "C1", Text: "plain"})
	fs.events <- callback("e2", &slackevents.AppMentionEvent{User: "U2", Channel: "C2", Text: "<@bot> ping", TimeStamp: "2.2"})

	msg := next(t, queue)
	assert.True(t, msg.Mention)
	assert.Equal(t, "2.2", msg.ID)
	assert.Equal(t, "<@bot> ping", msg.Text)
}

func TestInput_RunError(t *testing.T) {
	in, fs := newTestInput(false)
	fs.runErr = errors.New("invalid_auth")
	require.NoError(t, in.Bind(core.NewInputQueue()))
	assert.EqualError(t, in.Run(context.Background()), "invalid_auth")
}

func TestInput_Unbound(t *testing.T) {
	in, _ := newTestInput(false)
	assert.ErrorIs(t, in.Run(context.Background()), core.ErrNotBound)
}

type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	args := m.Called(ctx, channelID, len(options))
	return args.String(0), args.String(1), args.Error(2)
}

func TestOutput(t *testing.T) {
	ctx := context.Background()

	t.Run("Threaded reply", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostMessageContext", ctx, "C1", 2).Return("C1", "3.3", nil)
		out := NewOutput(poster, "")

		msg := MessageEvent{MessageEvent: events.MessageEvent{Channel: "C1"}, ThreadTS: "1.0"}
		assert.True(t, out.Output(ctx, msg.Reply("pong")))
		poster.AssertExpectations(t)
	})

	t.Run("Default channel", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostMessageContext", ctx, "#general", 1).Return("", "", nil)
		out := NewOutput(poster, "#general")

		assert.True(t, out.Output(ctx, ReplyEvent{ReplyEvent: events.ReplyEvent{Text: "hi"}}))
		poster.AssertExpectations(t)
	})

	t.Run("Pointer reply", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostMessageContext", ctx, "C1", 1).Return("C1", "4.4", nil)
		out := NewOutput(poster, "")

		reply := &ReplyEvent{ReplyEvent: events.ReplyEvent{Channel: "C1", Text: "hi"}}
		require.True(t, out.ConsumesOutputs().Accepts(reply))
		assert.True(t, out.Output(ctx, reply))
		poster.AssertExpectations(t)
	})

	t.Run("API error", func(t *testing.T) {
		poster := new(mockPoster)
		poster.On("PostMessageContext", ctx, "C1", 1).Return("", "", errors.New("channel_not_found"))
		out := NewOutput(poster, "")

		assert.False(t, out.Output(ctx, ReplyEvent{ReplyEvent: events.ReplyEvent{Channel: "C1", Text: "hi"}}))
	})

	t.Run("No channel", func(t *testing.T) {
		poster := new(mockPoster)
		out := NewOutput(poster, "")
		assert.False(t, out.Output(ctx, ReplyEvent{}))
		poster.AssertNotCalled(t, "PostMessageContext")
	})

	t.Run("Wrong type", func(t *testing.T) {
		out := NewOutput(new(mockPoster), "C1")
		assert.False(t, out.Output(ctx, events.ReplyEvent{Text: "generic"}))
		assert.False(t, out.ConsumesOutputs().Accepts(events.ReplyEvent{}))
	})
}

func TestConfig(t *testing.T) {
	t.Setenv("SLACK_BOT_USER_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")

	err := (&Config{}).Validate()
	assert.ErrorContains(t, err, "slack bot token is required")
	assert.ErrorContains(t, err, "xapp-")

	t.Setenv("SLACK_BOT_USER_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
	cfg := &Config{Channel: "#bots"}
	assert.NoError(t, cfg.Validate())

	require.Len(t, cfg.Inputs(), 1)
	require.Len(t, cfg.Outputs(), 1)
	assert.Same(t, cfg.Inputs()[0], cfg.Inputs()[0])
	assert.True(t, cfg.Inputs()[0].ProducesInputs().Accepts(MessageEvent{}))
	assert.True(t, cfg.Outputs()[0].ConsumesOutputs().Accepts(ReplyEvent{}))
}

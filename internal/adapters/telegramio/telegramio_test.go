package telegramio

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// validToken has the shape telego checks for: bot ID, colon, 35 characters.
const validToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0"

type fakePoller struct {
	updates chan telego.Update
	params  *telego.GetUpdatesParams
	err     error
}

func (p *fakePoller) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error) {
	p.params = params
	return p.updates, p.err
}

func update(id int, from *telego.User, text string) telego.Update {
	return telego.Update{
		UpdateID: id,
		Message: &telego.Message{
			MessageID: id * 10,
			Date:      1700000000,
			Chat:      telego.Chat{ID: -100123, Type: "group"},
			From:      from,
			Text:      text,
		},
	}
}

func TestInput_Run(t *testing.T) {
	poller := &fakePoller{updates: make(chan telego.Update, 10)}
	in := NewInput(poller, 15)
	queue := core.NewInputQueue()
	require.NoError(t, in.Bind(queue))

	poller.updates <- telego.Update{UpdateID: 1}
	poller.updates <- update(2, &telego.User{ID: 9, IsBot: true}, "from a bot")
	poller.updates <- update(3, &telego.User{ID: 7, Username: "alice"}, "")
	poller.updates <- update(4, &telego.User{ID: 7, Username: "alice"}, "/start")
	poller.updates <- update(5, &telego.User{ID: 8}, "no username")
	close(poller.updates)

	require.NoError(t, in.Run(context.Background()))
	assert.Equal(t, 15, poller.params.Timeout)
	assert.Equal(t, []string{"message"}, poller.params.AllowedUpdates)

	require.Equal(t, 2, queue.Len())
	ev, _ := queue.TryGet()
	msg := ev.(MessageEvent)
	assert.Equal(t, "4", msg.ID)
	assert.Equal(t, 40, msg.MessageID)
	assert.Equal(t, "-100123", msg.Channel)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "/start", msg.Text)
	assert.Equal(t, "group", msg.ChatType)
	assert.Equal(t, int64(1700000000), msg.Received.Unix())

	ev, _ = queue.TryGet()
	assert.Equal(t, "8", ev.(MessageEvent).Sender)
}

func TestInput_Errors(t *testing.T) {
	in := NewInput(&fakePoller{err: errors.New("telego: getUpdates: api: 401 Unauthorized")}, 1)
	assert.ErrorIs(t, in.Run(context.Background()), core.ErrNotBound)

	require.NoError(t, in.Bind(core.NewInputQueue()))
	assert.ErrorContains(t, in.Run(context.Background()), "401")
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	replyTo := 0
	if params.ReplyParameters != nil {
		replyTo = params.ReplyParameters.MessageID
	}
	chat := params.ChatID.Username
	if chat == "" {
		chat = strconv.FormatInt(params.ChatID.ID, 10)
	}
	args := m.Called(chat, params.Text, replyTo)
	return nil, args.Error(0)
}

func TestOutput(t *testing.T) {
	ctx := context.Background()

	t.Run("Reply quotes the message", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendMessage", "-100123", "pong", 40).Return(nil)
		out := NewOutput(sender, "")

		msg := MessageEvent{MessageEvent: events.MessageEvent{Channel: "-100123"}, MessageID: 40}
		assert.True(t, out.Output(ctx, msg.Reply("pong")))
		sender.AssertExpectations(t)
	})

	t.Run("Default chat by username", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendMessage", "@mewbot_news", "hello", 0).Return(nil)
		out := NewOutput(sender, "mewbot_news")

		assert.True(t, out.Output(ctx, ReplyEvent{ReplyEvent: events.ReplyEvent{Text: "hello"}}))
		sender.AssertExpectations(t)
	})

	t.Run("Pointer reply", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendMessage", "42", "ptr", 7).Return(nil)
		out := NewOutput(sender, "")

		reply := &ReplyEvent{ReplyEvent: events.ReplyEvent{Channel: "42", Text: "ptr"}, ReplyTo: 7}
		require.True(t, out.ConsumesOutputs().Accepts(reply))
		assert.True(t, out.Output(ctx, reply))
		sender.AssertExpectations(t)
	})

	t.Run("API error", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendMessage", "1", "x", 0).Return(errors.New("chat not found"))
		out := NewOutput(sender, "")
		assert.False(t, out.Output(ctx, ReplyEvent{ReplyEvent: events.ReplyEvent{Channel: "1", Text: "x"}}))
	})

	t.Run("Nothing to send", func(t *testing.T) {
		out := NewOutput(new(mockSender), "")
		assert.False(t, out.Output(ctx, ReplyEvent{}))
		assert.False(t, out.Output(ctx, events.ReplyEvent{Channel: "1"}))
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	assert.ErrorContains(t, (&Config{}).Validate(), "telegram bot token is required")
	assert.ErrorContains(t, (&Config{Token: "x", PollTimeout: -1}).Validate(), "poll_timeout")

	t.Setenv("TELEGRAM_BOT_TOKEN", validToken)
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Inputs(), 1)
	assert.Len(t, cfg.Outputs(), 1)
}

func TestConfig_BadToken(t *testing.T) {
	cfg := &Config{Token: "not-a-token"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, telego.ErrInvalidToken)
	assert.ErrorContains(t, err, "telegram: create bot")

	// The error sticks, so the loader never gets a half-built config.
	assert.Error(t, cfg.Validate())
	assert.Empty(t, cfg.Inputs())
	assert.Empty(t, cfg.Outputs())
}

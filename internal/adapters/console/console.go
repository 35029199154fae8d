// Package console connects a bot to a terminal: each line read from the
// input stream becomes a message, and replies are written to the output
// stream.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// Source is the MessageSource of console events.
const Source = "console"

// MessageEvent is a line typed on the console.
type MessageEvent struct {
	events.MessageEvent
}

// Reply addresses text back to the console.
func (e MessageEvent) Reply(text string) core.OutputEvent {
	return ReplyEvent{ReplyEvent: events.ReplyEvent{Source: Source, Channel: e.Channel, Text: text}}
}

// ReplyEvent is printed by the console Output.
type ReplyEvent struct {
	events.ReplyEvent
}

func init() {
	events.RegisterReply(Source, func(channel, text string) core.OutputEvent {
		return ReplyEvent{ReplyEvent: events.ReplyEvent{Source: Source, Channel: channel, Text: text}}
	})
}

// Config is the console IOConfig. It reads os.Stdin and writes os.Stdout
// unless other streams are given.
type Config struct {
	Prompt  string `yaml:"prompt"`
	User    string `yaml:"user"`
	Channel string `yaml:"channel"`

	in     io.Reader
	out    io.Writer
	once   sync.Once
	input  *Input
	output *Output
}

// New builds a console IOConfig on the given streams.
func New(in io.Reader, out io.Writer) *Config {
	return &Config{in: in, out: out}
}

func (c *Config) build() {
	c.once.Do(func() {
		user := c.User
		if user == "" {
			user = "user"
		}
		channel := c.Channel
		if channel == "" {
			channel = "stdin"
		}
		in, out := c.in, c.out
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		c.input = &Input{reader: in, user: user, channel: channel}
		c.output = &Output{writer: out, prompt: c.Prompt}
	})
}

// Inputs returns the line reader.
func (c *Config) Inputs() []core.Input {
	c.build()
	return []core.Input{c.input}
}

// Outputs returns the line writer.
func (c *Config) Outputs() []core.Output {
	c.build()
	return []core.Output{c.output}
}

// Input reads lines until EOF or cancellation.
type Input struct {
	core.InputBinding
	reader  io.Reader
	user    string
	channel string
}

func (*Input) Name() string { return "console-input" }

func (*Input) ProducesInputs() core.TypeSet {
	return core.Types(core.TypeOf[MessageEvent]())
}

// Run emits one MessageEvent per non-empty line. Reaching EOF or
// cancellation ends Run without error.
func (i *Input) Run(ctx context.Context) error {
	if i.reader == nil {
		return fmt.Errorf("console input has no reader")
	}
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(i.reader)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errs
			}
			if line == "" {
				continue
			}
			n++
			err := i.Emit(MessageEvent{MessageEvent: events.MessageEvent{
				ID:       strconv.Itoa(n),
				Source:   Source,
				Channel:  i.channel,
				Sender:   i.user,
				Text:     line,
				Received: time.Now(),
			}})
			if err != nil {
				return err
			}
		}
	}
}

// Output writes replies as lines.
type Output struct {
	mu     sync.Mutex
	writer io.Writer
	prompt string
}

func (*Output) Name() string { return "console-output" }

func (*Output) ConsumesOutputs() core.TypeSet {
	return core.Types(core.TypeOf[ReplyEvent]())
}

func (o *Output) Output(ctx context.Context, event core.OutputEvent) bool {
	reply, ok := core.As[ReplyEvent](event)
	if !ok || o.writer == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := fmt.Fprintf(o.writer, "%s%s\n", o.prompt, reply.Text)
	return err == nil
}

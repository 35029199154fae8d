package loader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mewbot/internal/behaviour"
	"mewbot/internal/core"
	"mewbot/internal/events"
)

type testIO struct {
	Greeting string `yaml:"greeting"`
}

func (*testIO) Inputs() []core.Input   { return nil }
func (*testIO) Outputs() []core.Output { return nil }

type testTrigger struct {
	Word string `yaml:"word"`
}

func (*testTrigger) ConsumesInputs() core.TypeSet {
	return core.Types(core.TypeOf[events.Message]())
}

func (t *testTrigger) Matches(event core.InputEvent) bool {
	return strings.Contains(event.(events.Message).MessageText(), t.Word)
}

func (t *testTrigger) Validate() error {
	if t.Word == "" {
		return errors.New("word is required")
	}
	return nil
}

type testCondition struct{}

func (*testCondition) ConsumesInputs() core.TypeSet { return core.Types(core.TypeOf[events.Message]()) }
func (*testCondition) Allows(core.InputEvent) bool  { return true }

type testAction struct {
	core.OutputBinding
	Text   string `yaml:"text"`
	inited bool
}

func (*testAction) ConsumesInputs() core.TypeSet  { return core.Types(core.TypeOf[events.Message]()) }
func (*testAction) ProducesOutputs() core.TypeSet { return core.Types(core.TypeOf[events.ReplyEvent]()) }

func (a *testAction) Init(deps Dependencies) error {
	a.inited = true
	return nil
}

func (a *testAction) Act(ctx context.Context, event core.InputEvent, state *core.State) error {
	return a.Emit(event.(events.Message).Reply(a.Text))
}

type notAComponent struct{}

// testGate is both a Trigger and a Condition.
type testGate struct{}

func (*testGate) ConsumesInputs() core.TypeSet      { return core.Types(core.TypeOf[events.Message]()) }
func (*testGate) Matches(core.InputEvent) bool      { return true }
func (*testGate) Allows(event core.InputEvent) bool { return true }

func jsonLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, Register[testIO](r, core.KindIOConfig, "test_io", "io"))
	require.NoError(t, Register[testTrigger](r, core.KindTrigger, "word", "trigger"))
	require.NoError(t, Register[testCondition](r, core.KindCondition, "always", "condition"))
	require.NoError(t, Register[testAction](r, core.KindAction, "say", "action"))
	return r
}

func TestRegister(t *testing.T) {
	r := testRegistry(t)

	assert.Equal(t, []string{"always", "say", "test_io", "word"}, r.Names())

	err := Register[testIO](r, core.KindIOConfig, "test_io", "again")
	assert.ErrorIs(t, err, ErrDuplicateImplementation)

	err = Register[notAComponent](r, core.KindTrigger, "nope", "")
	assert.ErrorContains(t, err, "does not implement")

	err = Register[testIO](r, core.KindTemplate, "template", "")
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	err = Register[testIO](r, core.KindDataSource, "source", "")
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	assert.Error(t, Register[testIO](r, core.KindIOConfig, "", ""))
	assert.Panics(t, func() { MustRegister[testIO](r, core.KindIOConfig, "test_io", "") })

	regs := r.Registrations()
	require.Len(t, regs, 4)
	assert.Equal(t, core.KindAction, regs[0].Kind)
	assert.Equal(t, "say", regs[0].Name)
}

func TestBuild(t *testing.T) {
	r := testRegistry(t)

	c, err := r.Build(core.ConfigBlock{
		Kind:           "Trigger",
		Implementation: "word",
		Properties:     core.Properties{"word": "ping"},
	}, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, &testTrigger{Word: "ping"}, c)

	_, err = r.Build(core.ConfigBlock{Kind: "Trigger", Implementation: "missing"}, Dependencies{})
	assert.ErrorIs(t, err, ErrUnknownImplementation)

	_, err = r.Build(core.ConfigBlock{Kind: "Action", Implementation: "word"}, Dependencies{})
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = r.Build(core.ConfigBlock{Kind: "Gizmo", Implementation: "word"}, Dependencies{})
	assert.ErrorIs(t, err, core.ErrInvalidValue)

	_, err = r.Build(core.ConfigBlock{Kind: "Trigger", Implementation: "word"}, Dependencies{})
	assert.ErrorContains(t, err, "word is required")

	_, err = r.Build(core.ConfigBlock{Kind: "Trigger", Implementation: "word", Properties: core.Properties{"wrod": "x"}}, Dependencies{})
	assert.ErrorContains(t, err, "wrod")

	c, err = r.Build(core.ConfigBlock{Kind: "Action", Implementation: "say"}, Dependencies{})
	require.NoError(t, err)
	assert.True(t, c.(*testAction).inited)

	// Each build is a fresh instance.
	c2, err := r.Build(core.ConfigBlock{Kind: "Action", Implementation: "say"}, Dependencies{})
	require.NoError(t, err)
	assert.NotSame(t, c, c2)
}

func TestBuild_FactoryDoesNotMatchKind(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.add(Registration{
		Name:    "broken",
		Kind:    core.KindTrigger,
		factory: func() core.Component { return &testIO{} },
	}))

	_, err := r.Build(core.ConfigBlock{Kind: "Trigger", Implementation: "broken"}, Dependencies{})
	assert.ErrorContains(t, err, "broken: ")
	assert.ErrorContains(t, err, "does not implement")
}

const botYAML = `
kind: IOConfig
implementation: test_io
uuid: 5f0d8a51-2f0c-4f3e-8f4b-4c7d1e2a9b10
properties:
  greeting: hello
---
kind: Behaviour
properties:
  name: pinger
triggers:
  - implementation: word
    properties:
      word: ping
conditions:
  - kind: Condition
    implementation: always
actions:
  - implementation: say
    properties:
      text: pong
  - implementation: say
    properties:
      text: again
---
`

func TestParse(t *testing.T) {
	docs, err := Parse(strings.NewReader(botYAML))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "IOConfig", docs[0].Kind)
	assert.Equal(t, "5f0d8a51-2f0c-4f3e-8f4b-4c7d1e2a9b10", docs[0].UUID)
	assert.Equal(t, "hello", docs[0].Properties.GetString("greeting", ""))

	bh := docs[1]
	assert.Equal(t, "Behaviour", bh.Kind)
	_, err = uuid.Parse(bh.UUID)
	assert.NoError(t, err, "missing uuids are generated")
	require.Len(t, bh.Triggers, 1)
	assert.Equal(t, "Trigger", bh.Triggers[0].Kind)
	assert.NotEmpty(t, bh.Triggers[0].UUID)
	require.Len(t, bh.Actions, 2)
	assert.Equal(t, "Action", bh.Actions[1].Kind)
	assert.NotEqual(t, bh.Actions[0].UUID, bh.Actions[1].UUID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad kind", "kind: Widget\nimplementation: x\n", "invalid value Widget"},
		{"bad uuid", "kind: IOConfig\nimplementation: x\nuuid: not-a-uuid\n", "invalid uuid"},
		{"no implementation", "kind: IOConfig\n", "implementation is required"},
		{"nested on non-behaviour", "kind: IOConfig\nimplementation: x\ntriggers:\n  - implementation: y\n", "only a Behaviour"},
		{"wrong nested kind", "kind: Behaviour\ntriggers:\n  - kind: Action\n    implementation: y\n", "kind Action is not allowed here"},
		{"nested without implementation", "kind: Behaviour\nactions:\n  - properties: {}\n", "Action 0: implementation is required"},
		{"unknown field", "kind: IOConfig\nimplementation: x\nproprties: {}\n", "proprties"},
		{"not yaml", "kind: [", "document 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadReader(t *testing.T) {
	r := testRegistry(t)
	b, err := LoadReader(r, strings.NewReader(botYAML), Options{Name: "test-bot"})
	require.NoError(t, err)

	assert.Equal(t, "test-bot", b.Name())
	require.Len(t, b.IOConfigs(), 1)
	assert.Equal(t, "hello", b.IOConfigs()[0].(*testIO).Greeting)

	require.Len(t, b.Behaviours(), 1)
	bh := b.Behaviours()[0].(*behaviour.Behaviour)
	assert.Equal(t, "pinger", bh.Name())

	q := core.NewOutputQueue()
	require.NoError(t, bh.BindOutput(q))
	outcome, err := bh.Handle(context.Background(), events.MessageEvent{Source: "t", Channel: "c", Text: "ping!"})
	require.NoError(t, err)
	assert.Equal(t, behaviour.Complete, outcome)

	first, _ := q.TryGet()
	second, _ := q.TryGet()
	assert.Equal(t, "pong", first.(events.ReplyEvent).Text)
	assert.Equal(t, "again", second.(events.ReplyEvent).Text)
}

func TestLoad_CollectsErrors(t *testing.T) {
	r := testRegistry(t)
	yaml := `
kind: IOConfig
implementation: unknown_io
---
kind: Trigger
implementation: word
properties:
  word: x
---
kind: Template
implementation: whatever
---
kind: Behaviour
triggers:
  - implementation: word
actions:
  - implementation: say
    properties:
      colour: blue
`
	_, err := LoadReader(r, strings.NewReader(yaml), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownImplementation)
	assert.ErrorContains(t, err, "a Trigger must be declared inside a Behaviour")
	assert.ErrorContains(t, err, "unsupported component kind")
	assert.ErrorIs(t, err, core.ErrInvalidValue)
	assert.ErrorContains(t, err, "word is required")
	assert.ErrorContains(t, err, "colour")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	io := filepath.Join(dir, "io.yaml")
	bh := filepath.Join(dir, "behaviour.yaml")
	require.NoError(t, os.WriteFile(io, []byte("kind: IOConfig\nimplementation: test_io\n"), 0644))
	require.NoError(t, os.WriteFile(bh, []byte("kind: Behaviour\ntriggers:\n  - implementation: word\n    properties: {word: hi}\n"), 0644))

	b, err := LoadFiles(testRegistry(t), Options{}, io, bh)
	require.NoError(t, err)
	assert.Equal(t, "mewbot", b.Name())
	assert.Len(t, b.IOConfigs(), 1)
	assert.Len(t, b.Behaviours(), 1)

	_, err = LoadFiles(testRegistry(t), Options{})
	assert.ErrorContains(t, err, "no configuration files")

	_, err = LoadFiles(testRegistry(t), Options{}, filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BehaviourLoggerKeyedOnce(t *testing.T) {
	logger, buf := jsonLogger()
	b, err := LoadReader(testRegistry(t), strings.NewReader(botYAML), Options{Deps: Dependencies{Logger: logger}})
	require.NoError(t, err)

	bh := b.Behaviours()[0].(*behaviour.Behaviour)
	buf.Reset()
	outcome, err := bh.Handle(context.Background(), events.MessageEvent{Text: "no match"})
	require.NoError(t, err)
	assert.Equal(t, behaviour.Dropped, outcome)

	line := buf.String()
	require.Contains(t, line, "event dropped")
	assert.Equal(t, 1, strings.Count(line, `"behaviour":"pinger"`))
}

func TestLoad_WarnsOnExtraRoles(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, Register[testGate](r, core.KindTrigger, "gate", "trigger and condition"))

	logger, buf := jsonLogger()
	yaml := "kind: Behaviour\ntriggers:\n  - implementation: gate\n    uuid: 0b6e3c4e-51a3-4c55-9d4c-2b8d5c6f7a80\n"
	_, err := LoadReader(r, strings.NewReader(yaml), Options{Deps: Dependencies{Logger: logger}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Component fills more than its declared role")
	assert.Contains(t, out, "0b6e3c4e-51a3-4c55-9d4c-2b8d5c6f7a80")
	assert.Contains(t, out, `"kinds":["Trigger","Condition"]`)

	buf.Reset()
	_, err = LoadReader(r, strings.NewReader(botYAML), Options{Deps: Dependencies{Logger: logger}})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "more than its declared role")
}

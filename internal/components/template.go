package components

import (
	"bytes"
	"text/template"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// templateData is what reply, announce, set_state and log templates see.
type templateData struct {
	Event   core.InputEvent
	Text    string
	Sender  string
	Channel string
	Source  string
	State   map[string]any
}

func newTemplateData(event core.InputEvent, state *core.State) templateData {
	data := templateData{Event: event, State: state.Snapshot()}
	if msg, ok := event.(events.Message); ok {
		data.Text = msg.MessageText()
		data.Sender = msg.MessageSender()
		data.Channel = msg.MessageChannel()
		data.Source = msg.MessageSource()
	}
	return data
}

func parseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=zero").Parse(text)
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

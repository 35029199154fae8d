package components

import (
	"errors"

	"mewbot/internal/adapters/console"
	"mewbot/internal/adapters/discordio"
	"mewbot/internal/adapters/filewatch"
	"mewbot/internal/adapters/schedule"
	"mewbot/internal/adapters/slackio"
	"mewbot/internal/adapters/telegramio"
	"mewbot/internal/core"
	"mewbot/internal/loader"
)

// Register adds every built-in component and IO adapter to r.
func Register(r *loader.Registry) error {
	return errors.Join(
		loader.Register[console.Config](r, core.KindIOConfig, "console", "Reads lines from stdin and prints replies"),
		loader.Register[slackio.Config](r, core.KindIOConfig, "slack", "Slack over Socket Mode"),
		loader.Register[discordio.Config](r, core.KindIOConfig, "discord", "Discord gateway, or a channel webhook"),
		loader.Register[telegramio.Config](r, core.KindIOConfig, "telegram", "Telegram bot with long polling"),
		loader.Register[schedule.Config](r, core.KindIOConfig, "schedule", "Cron and interval ticks"),
		loader.Register[filewatch.Config](r, core.KindIOConfig, "filewatch", "Filesystem change events"),

		loader.Register[TextContains](r, core.KindTrigger, "text_contains", "Message text contains a string"),
		loader.Register[Regex](r, core.KindTrigger, "regex", "Message text matches a regular expression"),
		loader.Register[AnyMessage](r, core.KindTrigger, "any_message", "Every message"),
		loader.Register[Tick](r, core.KindTrigger, "tick", "Scheduled ticks, optionally of one job"),
		loader.Register[FileChanged](r, core.KindTrigger, "file_changed", "File changes, optionally filtered by pattern and operation"),

		loader.Register[SenderNot](r, core.KindCondition, "sender_not", "Drop messages from the listed senders"),
		loader.Register[SenderIn](r, core.KindCondition, "sender_in", "Keep only messages from the listed senders"),
		loader.Register[ChannelIn](r, core.KindCondition, "channel_in", "Keep only messages from the listed channels"),

		loader.Register[Reply](r, core.KindAction, "reply", "Reply on the message's platform"),
		loader.Register[Announce](r, core.KindAction, "announce", "Send a message to a fixed channel"),
		loader.Register[SetState](r, core.KindAction, "set_state", "Store values for later actions"),
		loader.Register[Log](r, core.KindAction, "log", "Write to the bot log"),
		loader.Register[Persist](r, core.KindAction, "persist", "Save messages to the store"),
		loader.Register[History](r, core.KindAction, "history", "Load recent messages into the state"),
		loader.Register[Count](r, core.KindAction, "count", "Increment a stored counter"),
		loader.Register[Remember](r, core.KindAction, "remember", "Store a fact for later events"),
		loader.Register[Recall](r, core.KindAction, "recall", "Load a stored fact into the state"),
	)
}

// NewRegistry returns a Registry with every built-in registered.
func NewRegistry() *loader.Registry {
	r := loader.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}

package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mewbot/internal/behaviour"
	"mewbot/internal/bot"
	"mewbot/internal/core"
)

// DefaultBehaviour is the implementation used for Behaviour blocks that do
// not name one.
const DefaultBehaviour = "behaviour"

// Options configure Load.
type Options struct {
	Name       string
	Deps       Dependencies
	BotOptions []bot.Option
}

// Load builds a bot from parsed documents. Every problem found is reported,
// joined into one error.
func Load(r *Registry, docs []core.BehaviourConfigBlock, opts Options) (*bot.Bot, error) {
	logger := opts.Deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	botOpts := append([]bot.Option{bot.WithLogger(logger)}, opts.BotOptions...)
	if opts.Deps.Metrics != nil {
		botOpts = append(botOpts, bot.WithMetrics(opts.Deps.Metrics))
	}
	name := opts.Name
	if name == "" {
		name = "mewbot"
	}
	b := bot.New(name, botOpts...)

	var errs []error
	for i, doc := range docs {
		if err := loadDocument(r, b, doc, opts.Deps, logger); err != nil {
			errs = append(errs, fmt.Errorf("%s %d (%s): %w", doc.Kind, i, doc.UUID, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}

func loadDocument(r *Registry, b *bot.Bot, doc core.BehaviourConfigBlock, deps Dependencies, logger *slog.Logger) error {
	kind, err := core.ParseComponentKind(doc.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case core.KindIOConfig:
		c, err := r.Build(doc.ConfigBlock, deps)
		if err != nil {
			return err
		}
		b.AddIOConfig(c.(core.IOConfig))
		return nil
	case core.KindBehaviour:
		bh, err := buildBehaviour(r, doc, deps, logger)
		if err != nil {
			return err
		}
		b.AddBehaviour(bh)
		return nil
	case core.KindTrigger, core.KindCondition, core.KindAction:
		return fmt.Errorf("a %s must be declared inside a Behaviour", kind)
	default:
		_, err := core.Interface(kind)
		return fmt.Errorf("unsupported component kind: %w", err)
	}
}

func buildBehaviour(r *Registry, doc core.BehaviourConfigBlock, deps Dependencies, logger *slog.Logger) (core.Behaviour, error) {
	var bh core.Behaviour
	if doc.Implementation == "" || doc.Implementation == DefaultBehaviour {
		var props struct {
			Name string `yaml:"name"`
		}
		if err := doc.Properties.Decode(&props); err != nil {
			return nil, err
		}
		name := props.Name
		if name == "" {
			name = doc.UUID
		}
		bh = behaviour.New(name, behaviour.WithLogger(logger))
	} else {
		c, err := r.Build(doc.ConfigBlock, deps)
		if err != nil {
			return nil, err
		}
		bh = c.(core.Behaviour)
	}

	var errs []error
	for _, group := range [][]core.ConfigBlock{doc.Triggers, doc.Conditions, doc.Actions} {
		for _, block := range group {
			c, err := r.Build(block, deps)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", block.Kind, block.UUID, err))
				continue
			}
			// Add files a component under every role it implements, not
			// only the one it was declared as.
			if kinds := core.KindsOf(c); len(kinds) > 1 {
				logger.Warn("Component fills more than its declared role",
					"uuid", block.UUID, "implementation", block.Implementation,
					"declared", block.Kind, "kinds", kinds)
			}
			if err := bh.Add(c); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", block.Kind, block.UUID, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return bh, nil
}

// LoadReader parses r and builds a bot from it.
func LoadReader(r *Registry, in io.Reader, opts Options) (*bot.Bot, error) {
	docs, err := Parse(in)
	if err != nil {
		return nil, err
	}
	return Load(r, docs, opts)
}

// LoadFiles parses every file, in order, and builds one bot from all of
// their documents.
func LoadFiles(r *Registry, opts Options, paths ...string) (*bot.Bot, error) {
	docs, err := ParseFiles(paths...)
	if err != nil {
		return nil, err
	}
	return Load(r, docs, opts)
}

// ParseFiles parses every file, in order.
func ParseFiles(paths ...string) ([]core.BehaviourConfigBlock, error) {
	if len(paths) == 0 {
		return nil, errors.New("no configuration files given")
	}
	var docs []core.BehaviourConfigBlock
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		parsed, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

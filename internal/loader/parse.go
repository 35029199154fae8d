package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"mewbot/internal/core"
)

// Parse reads a stream of YAML documents, one component per document.
// Behaviour documents carry their triggers, conditions and actions. Missing
// UUIDs are generated; present ones must be valid. Empty documents are
// skipped.
func Parse(r io.Reader) ([]core.BehaviourConfigBlock, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var docs []core.BehaviourConfigBlock
	for i := 0; ; i++ {
		var doc core.BehaviourConfigBlock
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if doc.Kind == "" && doc.Implementation == "" && len(doc.Properties) == 0 {
			continue
		}
		if err := normalize(&doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func normalize(doc *core.BehaviourConfigBlock) error {
	kind, err := core.ParseComponentKind(doc.Kind)
	if err != nil {
		return fmt.Errorf("kind: %w", err)
	}
	if err := normalizeBlock(&doc.ConfigBlock); err != nil {
		return err
	}

	nested := len(doc.Triggers) + len(doc.Conditions) + len(doc.Actions)
	if kind != core.KindBehaviour {
		if nested > 0 {
			return fmt.Errorf("only a Behaviour can have triggers, conditions or actions")
		}
		if doc.Implementation == "" {
			return fmt.Errorf("implementation is required")
		}
		return nil
	}

	sections := []struct {
		kind   core.ComponentKind
		blocks []core.ConfigBlock
	}{
		{core.KindTrigger, doc.Triggers},
		{core.KindCondition, doc.Conditions},
		{core.KindAction, doc.Actions},
	}
	for _, s := range sections {
		for i := range s.blocks {
			b := &s.blocks[i]
			if b.Kind == "" {
				b.Kind = string(s.kind)
			}
			if b.Kind != string(s.kind) {
				return fmt.Errorf("%s %d: kind %s is not allowed here", s.kind, i, b.Kind)
			}
			if b.Implementation == "" {
				return fmt.Errorf("%s %d: implementation is required", s.kind, i)
			}
			if err := normalizeBlock(b); err != nil {
				return fmt.Errorf("%s %d: %w", s.kind, i, err)
			}
		}
	}
	return nil
}

func normalizeBlock(b *core.ConfigBlock) error {
	if b.UUID == "" {
		b.UUID = uuid.NewString()
		return nil
	}
	id, err := uuid.Parse(b.UUID)
	if err != nil {
		return fmt.Errorf("invalid uuid %q: %w", b.UUID, err)
	}
	b.UUID = id.String()
	return nil
}

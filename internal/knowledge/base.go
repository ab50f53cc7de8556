// Package knowledge holds the intent corpus the engine answers from: intents,
// fallback replies, the greeting and the suggested-question pool.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"engagement-engine/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrInvalidIntent = errors.New("invalid intent")
	ErrInvalidCorpus = errors.New("invalid knowledge base")
)

// MinSuggestions is the smallest suggestion pool a seeded session can draw from.
const MinSuggestions = 3

// Base is immutable once loaded and safe to share between sessions.
type Base struct {
	Intents     []model.Intent `yaml:"intents"`
	Fallbacks   []string       `yaml:"fallbacks"`
	Suggestions []string       `yaml:"suggestions"`
	Greeting    string         `yaml:"greeting"`
}

var (
	defaultBase *Base
	defaultOnce sync.Once
	defaultErr  error
)

// Default returns the embedded knowledge base, parsed once.
func Default() (*Base, error) {
	defaultOnce.Do(func() {
		defaultBase, defaultErr = Parse(defaultYAML)
		if defaultErr != nil {
			defaultErr = fmt.Errorf("embedded knowledge base: %w", defaultErr)
		}
	})
	return defaultBase, defaultErr
}

// Load reads a knowledge base from path, or returns the embedded one when
// path is empty.
func Load(path string) (*Base, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", path, err)
	}
	kb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %s: %w", path, err)
	}
	return kb, nil
}

func Parse(data []byte) (*Base, error) {
	var kb Base
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorpus, err)
	}
	if err := kb.Validate(); err != nil {
		return nil, err
	}
	return &kb, nil
}

// Validate checks the structural rules every knowledge base must satisfy.
func (kb *Base) Validate() error {
	seen := make(map[string]struct{}, len(kb.Intents))
	for i, intent := range kb.Intents {
		if strings.TrimSpace(intent.ID) == "" {
			return fmt.Errorf("%w: intent #%d has no id", ErrInvalidIntent, i)
		}
		if _, dup := seen[intent.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidIntent, intent.ID)
		}
		seen[intent.ID] = struct{}{}
		if len(intent.Patterns) == 0 {
			return fmt.Errorf("%w: %s has no patterns", ErrInvalidIntent, intent.ID)
		}
		if len(intent.Responses) == 0 {
			return fmt.Errorf("%w: %s has no responses", ErrInvalidIntent, intent.ID)
		}
	}
	if len(kb.Fallbacks) == 0 {
		return fmt.Errorf("%w: no fallback responses", ErrInvalidCorpus)
	}
	if len(kb.Suggestions) < MinSuggestions {
		return fmt.Errorf("%w: need at least %d suggested questions, have %d",
			ErrInvalidCorpus, MinSuggestions, len(kb.Suggestions))
	}
	if strings.TrimSpace(kb.Greeting) == "" {
		return fmt.Errorf("%w: empty greeting", ErrInvalidCorpus)
	}
	return nil
}

// Intent looks up an intent by id.
func (kb *Base) Intent(id string) (model.Intent, bool) {
	for _, intent := range kb.Intents {
		if intent.ID == id {
			return intent, true
		}
	}
	return model.Intent{}, false
}

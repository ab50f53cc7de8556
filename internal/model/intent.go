package model

// DefaultPriority applies to intents that leave priority unset (zero).
const DefaultPriority = 5

// Intent maps trigger phrases to candidate responses.
type Intent struct {
	ID        string   `json:"id" yaml:"id"`
	Patterns  []string `json:"patterns" yaml:"patterns"`
	Responses []string `json:"responses" yaml:"responses"`
	Topics    []string `json:"topics" yaml:"topics"`
	Priority  int      `json:"priority,omitempty" yaml:"priority,omitempty"`
}

func (i *Intent) EffectivePriority() int {
	if i.Priority == 0 {
		return DefaultPriority
	}
	return i.Priority
}

package scenario

// Persona is one simulated conversation partner.
type Persona struct {
	ID                string `yaml:"id" json:"id"`
	Name              string `yaml:"name" json:"name"`
	Role              string `yaml:"role" json:"role"`
	Personality       string `yaml:"personality" json:"personality"`
	ConversationStyle string `yaml:"conversation_style" json:"conversationStyle"`
}

// Scenario is a rehearsal setting. Persona order is seating order, not priority.
type Scenario struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Description string    `yaml:"description" json:"description"`
	Theme       string    `yaml:"theme" json:"theme"`
	Personas    []Persona `yaml:"personas" json:"personas"`
}

type Mode string

const (
	ModeAssistant Mode = "assistant"
	ModeGroup     Mode = "group"
)

func (s *Scenario) Mode() Mode {
	if len(s.Personas) > 1 {
		return ModeGroup
	}
	return ModeAssistant
}

func (s *Scenario) IsGroup() bool { return s.Mode() == ModeGroup }

// Persona looks a persona up by display name.
func (s *Scenario) Persona(name string) (Persona, bool) {
	for _, p := range s.Personas {
		if p.Name == name {
			return p, true
		}
	}
	return Persona{}, false
}

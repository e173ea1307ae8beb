package chat

import (
	"fmt"
	"strings"

	"github.com/happycapy/rehearsal/scenario"
)

// ContinueInstruction is appended for backends that need a trailing user turn
// when the group keeps talking on its own.
const ContinueInstruction = "(The user is listening. Continue the group discussion naturally with the next speaker.)"

// Sampling settings of the two prompt modes.
const (
	PersonaTemperature = 0.7
	PersonaMaxTokens   = 150
	GroupTemperature   = 0.8
	GroupMaxTokens     = 200
)

// SystemPrompt picks the persona prompt for single-persona scenarios and the
// facilitator prompt for groups.
func SystemPrompt(req Request) string {
	s := req.Scenario
	if s == nil || len(s.Personas) == 0 {
		return ""
	}
	if s.IsGroup() {
		theme := req.Theme
		if theme == "" {
			theme = s.Theme
		}
		return GroupPrompt(s, theme)
	}
	return PersonaPrompt(s.Personas[0], s.ID)
}

// Sampling returns the temperature and token limit matching SystemPrompt.
func Sampling(req Request) (float32, int32) {
	if req.Scenario != nil && req.Scenario.IsGroup() {
		return GroupTemperature, GroupMaxTokens
	}
	return PersonaTemperature, PersonaMaxTokens
}

func PersonaPrompt(p scenario.Persona, scenarioID string) string {
	return fmt.Sprintf(`You are %[1]s, a %[2]s in a %[3]s scenario.

Personality: %[4]s

Instructions:
- Stay in character as %[1]s
- Respond naturally and conversationally
- Be helpful and encouraging for someone practicing social skills
- Keep responses concise but engaging (1-3 sentences)
- Show appropriate emotions and reactions
- If the user seems nervous, be supportive and patient
- Ask follow-up questions to keep the conversation flowing
- Adapt your language and tone to match your role
- Be gentle but also keep it professional

Remember: You are helping a teenager practice social interactions in a safe environment. Be realistic, supportive. say positive things`,
		p.Name, p.Role, scenarioID, p.Personality)
}

func GroupPrompt(s *scenario.Scenario, theme string) string {
	members := make([]string, 0, len(s.Personas))
	for _, p := range s.Personas {
		members = append(members, fmt.Sprintf("- %s (%s): %s. Conversation style: %s",
			p.Name, p.Role, p.Personality, p.ConversationStyle))
	}
	return fmt.Sprintf(`You are facilitating a group discussion about "%[1]s" in a %[2]s setting.

GROUP MEMBERS:
%[3]s

DISCUSSION THEME: %[1]s

INSTRUCTIONS:
- Respond as ONE of the group members (choose randomly but appropriately based on context)
- Format your response as: **[Name]**: [their response]
- Stay true to each character's personality and conversation style
- Keep responses natural and conversational (1-3 sentences)
- Build on previous messages and maintain conversation flow
- Ask follow-up questions to keep the discussion engaging
- Show different perspectives and personalities
- Make sure responses are relevant to the theme: %[1]s
- Encourage the user to participate by asking their opinion
- Create realistic group dynamics with occasional disagreements or different viewpoints

Remember: This is helping someone practice group conversation skills, so make it realistic but supportive, positive.`,
		theme, s.Title, strings.Join(members, "\n"))
}

// Kickoff is the opening user prompt that starts a session.
func Kickoff(s *scenario.Scenario) string {
	if s != nil && s.IsGroup() {
		return fmt.Sprintf("Let's start our discussion about %s. What are your thoughts?", s.Theme)
	}
	return "Hello! I'm here to listen and support you. How are you feeling today?"
}

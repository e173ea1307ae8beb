package persona

import (
	"strings"

	"github.com/happycapy/rehearsal/scenario"
)

type emojiRule struct {
	role   []string // any of
	also   string   // second role keyword that must be present too
	name   string   // persona name must contain this
	glyphs []string // more than one: picked at random
}

var emojiRules = []emojiRule{
	{role: []string{"wellness", "coach"}, glyphs: []string{"🦫"}},
	{role: []string{"therapist", "counselor"}, glyphs: []string{"👩‍⚕️"}},
	{role: []string{"hiring", "manager"}, glyphs: []string{"👩‍💼"}},
	{role: []string{"technical", "tech"}, glyphs: []string{"👨‍💻"}},
	{role: []string{"hr", "representative"}, glyphs: []string{"👩‍💼"}},
	{role: []string{"teacher"}, glyphs: []string{"👩‍🏫"}},
	{role: []string{"instructor", "professor"}, glyphs: []string{"👨‍🏫"}},
	{role: []string{"student"}, name: "alex", glyphs: []string{"👦"}},
	{role: []string{"student"}, name: "maya", glyphs: []string{"👧🏾"}},
	{role: []string{"student"}, glyphs: []string{"👨‍🎓", "👩‍🎓"}},
	{role: []string{"environmental"}, glyphs: []string{"👨‍🌾"}},
	{role: []string{"practical"}, glyphs: []string{"👩"}},
	{role: []string{"marketing"}, glyphs: []string{"👩‍💼"}},
	{role: []string{"developer"}, glyphs: []string{"👨‍💻"}},
	{role: []string{"mom", "mother"}, glyphs: []string{"👩‍👧‍👦"}},
	{role: []string{"dad", "father"}, glyphs: []string{"👨‍👧‍👦"}},
	{role: []string{"parent"}, glyphs: []string{"👩‍👧", "👨‍👦"}},
	{role: []string{"sibling"}, glyphs: []string{"👦", "👧"}},
	{role: []string{"friend"}, also: "social", glyphs: []string{"🧑‍🤝‍🧑"}},
	{role: []string{"friend"}, also: "chill", glyphs: []string{"😎"}},
	{role: []string{"friend"}, also: "trendy", glyphs: []string{"💁‍♀️"}},
	{role: []string{"friend"}, glyphs: []string{"🧑", "👧"}},
}

var fallbackGlyphs = []string{"👩", "👨", "👩‍🦱", "👨‍🦱", "👩‍🦰", "👨‍🦳", "👩‍🦳", "👨‍🦲", "👩‍🦲"}

func (r emojiRule) match(role, name string) bool {
	hit := false
	for _, k := range r.role {
		if strings.Contains(role, k) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	if r.also != "" && !strings.Contains(role, r.also) {
		return false
	}
	return r.name == "" || strings.Contains(name, r.name)
}

// Emoji matches role substrings like the avatar table always has. Ambiguous
// roles draw from the resolver's random source.
func (r *Resolver) Emoji(p scenario.Persona) string {
	role := strings.ToLower(p.Role)
	name := strings.ToLower(p.Name)
	for _, rule := range emojiRules {
		if rule.match(role, name) {
			return r.pick(rule.glyphs)
		}
	}
	return r.pick(fallbackGlyphs)
}

func (r *Resolver) pick(glyphs []string) string {
	if len(glyphs) == 1 {
		return glyphs[0]
	}
	return glyphs[r.rnd.IntN(len(glyphs))]
}

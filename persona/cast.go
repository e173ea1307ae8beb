package persona

import (
	"github.com/happycapy/rehearsal/scenario"
	"github.com/happycapy/rehearsal/speech"
)

// Member is a persona with its derived presentation.
type Member struct {
	scenario.Persona
	Voice speech.VoiceProfile
	Seat  Seat
	Emoji string
}

// Cast holds the resolved personas of one session. It is computed once when the
// session is created and never changes afterwards.
type Cast struct {
	members []Member
	byName  map[string]int
}

func (r *Resolver) Cast(s *scenario.Scenario) *Cast {
	c := &Cast{byName: make(map[string]int, len(s.Personas))}
	for i, p := range s.Personas {
		c.members = append(c.members, Member{
			Persona: p,
			Voice:   r.Profile(p),
			Seat:    SeatFor(i, len(s.Personas)),
			Emoji:   r.Emoji(p),
		})
		c.byName[p.Name] = i
	}
	return c
}

func (c *Cast) Members() []Member {
	out := make([]Member, len(c.members))
	copy(out, c.members)
	return out
}

func (c *Cast) Len() int { return len(c.members) }

func (c *Cast) Lookup(name string) (Member, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Member{}, false
	}
	return c.members[i], true
}

// Sole returns the only member of a single-persona cast.
func (c *Cast) Sole() (Member, bool) {
	if len(c.members) != 1 {
		return Member{}, false
	}
	return c.members[0], true
}

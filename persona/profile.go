// Package persona derives the presentation of a scenario's personas: the voice
// each one speaks with, where it sits, and which glyph stands in for its face.
package persona

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/happycapy/rehearsal/scenario"
	"github.com/happycapy/rehearsal/speech"
)

type voiceRule struct {
	keyword string
	profile speech.VoiceProfile
}

func female(rate, pitch, volume float64, idx int) speech.VoiceProfile {
	return speech.VoiceProfile{Rate: rate, Pitch: pitch, Volume: volume, Family: speech.FamilyFemale, Index: idx}
}

func male(rate, pitch, volume float64, idx int) speech.VoiceProfile {
	return speech.VoiceProfile{Rate: rate, Pitch: pitch, Volume: volume, Family: speech.FamilyMale, Index: idx}
}

// Matched in order against the lower-cased role; a keyword must start a word
// ("co-teacher" matches teacher, "chronicler" does not match hr). First hit wins.
var voiceRules = []voiceRule{
	{"wellness", female(1.0, 1.1, 0.9, 0)},
	{"coach", female(1.0, 1.05, 0.9, 0)},
	{"therapist", female(1.0, 1.0, 0.9, 0)},
	{"counselor", female(1.0, 1.0, 0.9, 0)},
	{"hiring", female(1.0, 1.0, 0.9, 0)},
	{"technical", male(1.0, 0.9, 0.85, 1)},
	{"hr", female(1.0, 1.1, 0.9, 2)},
	{"teacher", female(1.0, 0.9, 0.9, 0)},
	{"manager", male(1.0, 0.95, 0.85, 1)},
	{"student", female(1.0, 1.15, 0.9, 2)},
	{"classmate", male(0.8, 1.0, 0.9, 3)},
	{"parent", female(0.65, 1.1, 0.9, 0)},
	{"mom", female(1.0, 1.2, 0.9, 0)},
	{"dad", male(0.8, 0.85, 0.85, 1)},
	{"marketing", female(0.75, 1.1, 0.9, 2)},
	{"developer", male(0.7, 0.9, 0.85, 3)},
	{"friend", female(0.8, 1.05, 0.9, 2)},
	{"sibling", male(0.85, 1.0, 0.9, 3)},
}

var voicePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(voiceRules))
	for i, r := range voiceRules {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(r.keyword))
	}
	return out
}()

// DefaultProfile is used for roles no rule recognises.
var DefaultProfile = speech.VoiceProfile{Rate: 0.75, Pitch: 1.0, Volume: 0.9}

// Resolver maps personas to voice profiles, seats and emoji. Ties in the emoji
// table are broken with its own random source so a fixed seed replays a session.
type Resolver struct {
	rnd *rand.Rand
}

func NewResolver(seed uint64) *Resolver {
	return &Resolver{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Profile is deterministic: it never consults the random source.
func (r *Resolver) Profile(p scenario.Persona) speech.VoiceProfile {
	role := strings.ToLower(p.Role)
	for i, rule := range voiceRules {
		if voicePatterns[i].MatchString(role) {
			return rule.profile
		}
	}
	return DefaultProfile
}

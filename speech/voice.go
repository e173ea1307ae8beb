package speech

import "strings"

var (
	noveltyVoices = []string{"novelty", "whisper", "zarvox"}

	premiumVoices = []string{
		"premium", "enhanced", "neural", "wavenet", "polyglot", "natural",
		"samantha", "alex", "daniel", "karen", "moira", "tessa", "veena",
		"allison", "ava", "joanna", "matthew", "lotte", "siri",
	}

	femaleVoices = []string{
		"female", "woman", "girl", "samantha", "victoria", "karen", "moira",
		"tessa", "veena", "fiona", "susan", "allison", "ava", "joanna", "lisa",
		"catherine", "emily", "siri female",
	}

	maleVoices = []string{
		"male", "man", "boy", "alex", "daniel", "tom", "fred", "ralph", "jorge",
		"matthew", "james", "john", "siri male",
	}
)

func nameHasAny(name string, keywords []string) bool {
	name = strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

func filterVoices(voices []Voice, keep func(Voice) bool) []Voice {
	var out []Voice
	for _, v := range voices {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// SelectVoice picks the best English voice for a profile. It reports false only
// when voices is empty.
func SelectVoice(voices []Voice, p VoiceProfile) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	english := filterVoices(voices, func(v Voice) bool {
		return strings.HasPrefix(v.Lang, "en-") && !nameHasAny(v.Name, noveltyVoices)
	})
	if len(english) == 0 {
		return voices[0], true
	}

	candidates := filterVoices(english, func(v Voice) bool { return nameHasAny(v.Name, premiumVoices) })
	if len(candidates) == 0 {
		candidates = english
	}

	var gendered []string
	switch p.Family {
	case FamilyFemale:
		gendered = femaleVoices
	case FamilyMale:
		gendered = maleVoices
	}
	if gendered != nil {
		matches := filterVoices(candidates, func(v Voice) bool { return nameHasAny(v.Name, gendered) })
		if len(matches) > 0 {
			i := p.Index
			if i < 0 || i >= len(matches) {
				i = 0
			}
			return matches[i], true
		}
	}
	return candidates[0], true
}

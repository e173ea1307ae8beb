package speech

// Family is a voice gender hint used when picking a synthetic voice.
type Family int

const (
	FamilyUnspecified Family = iota
	FamilyFemale
	FamilyMale
)

func (f Family) String() string {
	switch f {
	case FamilyFemale:
		return "female"
	case FamilyMale:
		return "male"
	default:
		return "unspecified"
	}
}

// VoiceProfile is how a persona sounds.
type VoiceProfile struct {
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Family Family  `json:"family"`
	Index  int     `json:"index"`
}

const (
	defaultRate   = 2.0
	defaultPitch  = 2.0
	defaultVolume = 1.0
)

func (p *VoiceProfile) utterance(text string) Utterance {
	u := Utterance{Text: text, Rate: defaultRate, Pitch: defaultPitch, Volume: defaultVolume}
	if p == nil {
		return u
	}
	if p.Rate > 0 {
		u.Rate = p.Rate
	}
	if p.Pitch > 0 {
		u.Pitch = p.Pitch
	}
	if p.Volume > 0 {
		u.Volume = p.Volume
	}
	return u
}

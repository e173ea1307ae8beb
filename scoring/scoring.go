// Package scoring keeps the live conversation-quality heuristics. Scores come from
// word lists applied to what the user said; no audio features are involved.
package scoring

import "strings"

// Stats is the running aggregate of one session.
type Stats struct {
	TotalMessages  int  `json:"totalMessages"`
	FillerWords    int  `json:"fillerWords"`
	AnxietyMarkers int  `json:"anxietyMarkers"`
	Confidence     int  `json:"confidenceScore"`
	Engagement     int  `json:"engagementScore"`
	Coherence      int  `json:"coherenceScore"`
	Started        bool `json:"started"`
}

const (
	BaselineConfidence = 75
	BaselineEngagement = 70
	BaselineCoherence  = 80
)

// Lexicon holds the phrases counted in each utterance.
type Lexicon struct {
	Fillers  []string `mapstructure:"fillers" yaml:"fillers"`
	Anxiety  []string `mapstructure:"anxiety" yaml:"anxiety"`
	Positive []string `mapstructure:"positive" yaml:"positive"`
}

func DefaultLexicon() Lexicon {
	return Lexicon{
		Fillers: []string{"um", "uh", "like", "you know", "actually"},
		Anxiety: []string{
			"nervous", "anxious", "worried", "scared", "afraid", "stressed",
			"uncomfortable", "panic", "fear", "overwhelmed", "help", "can't",
			"difficult", "hard", "struggle",
		},
		Positive: []string{"confident", "excited", "ready", "understand", "clear", "good", "great", "yes"},
	}
}

// Scorer applies a Lexicon. It holds no session state.
type Scorer struct {
	lex Lexicon
}

func New(lex Lexicon) *Scorer {
	def := DefaultLexicon()
	if lex.Fillers == nil {
		lex.Fillers = def.Fillers
	}
	if lex.Anxiety == nil {
		lex.Anxiety = def.Anxiety
	}
	if lex.Positive == nil {
		lex.Positive = def.Positive
	}
	return &Scorer{lex: lex}
}

// Start seeds the baseline scores the first time it is called.
func Start(s Stats) Stats {
	if s.Started {
		return s
	}
	s.Started = true
	s.Confidence = BaselineConfidence
	s.Engagement = BaselineEngagement
	s.Coherence = BaselineCoherence
	return s
}

// Score folds one user utterance into prev. Call it once per user utterance and
// never for assistant turns.
func (sc *Scorer) Score(prev Stats, utterance string) Stats {
	s := Start(prev)
	lower := strings.ToLower(utterance)

	fillers := countAll(lower, sc.lex.Fillers)
	anxiety := countAll(lower, sc.lex.Anxiety)
	positive := countAll(lower, sc.lex.Positive)

	s.FillerWords += fillers
	s.AnxietyMarkers += anxiety
	s.Confidence = clamp(s.Confidence-3*fillers-5*anxiety+2*positive, 30, 100)

	// Short answers may only drag coherence down to 50; longer ones raise it.
	if len(utterance) > 10 {
		s.Coherence = clamp(s.Coherence+2, 0, 100)
	} else {
		s.Coherence = clamp(s.Coherence-1, 50, 100)
	}

	bump := 1
	if strings.Contains(utterance, "?") {
		bump = 3
	}
	s.Engagement = clamp(s.Engagement+bump, 0, 100)
	return s
}

// AssistantReply applies the fixed bonus for every reply a persona gives.
func AssistantReply(prev Stats) Stats {
	s := prev
	s.TotalMessages++
	s.Engagement = min(100, s.Engagement+2)
	s.Coherence = min(100, s.Coherence+1)
	return s
}

// Overall is the mean of the three scores, rounded.
func (s Stats) Overall() int {
	return (s.Confidence + s.Engagement + s.Coherence + 1) / 3
}

func countAll(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if p == "" {
			continue
		}
		n += strings.Count(text, strings.ToLower(p))
	}
	return n
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Package report turns a finished session into a performance report and
// exports it as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/orchestrator"
	"github.com/happycapy/rehearsal/scoring"
)

type Message struct {
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	Speaker   string    `json:"speaker,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bundle is the exported report.
type Bundle struct {
	ID            string             `json:"id"`
	ScenarioID    string             `json:"scenarioId"`
	Scenario      string             `json:"scenario"`
	Timestamp     time.Time          `json:"timestamp"`
	Stats         scoring.Stats      `json:"stats"`
	Messages      []Message          `json:"messages"`
	OverallScore  int                `json:"overallScore"`
	Rating        string             `json:"rating"`
	Insights      []string           `json:"insights"`
	SpeakingShare map[string]float64 `json:"speakingShare,omitempty"`
}

func Build(r orchestrator.Report) Bundle {
	msgs := make([]Message, 0, len(r.Turns))
	for _, t := range r.Turns {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content, Speaker: t.Speaker, Timestamp: t.CreatedAt})
	}
	ts := r.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	overall := r.Stats.Overall()
	return Bundle{
		ID:            uuid.NewString(),
		ScenarioID:    r.ScenarioID,
		Scenario:      r.ScenarioTitle,
		Timestamp:     ts,
		Stats:         r.Stats,
		Messages:      msgs,
		OverallScore:  overall,
		Rating:        Rating(overall),
		Insights:      Insights(r.Stats),
		SpeakingShare: SpeakingShare(r.Turns),
	}
}

func Rating(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	default:
		return "Needs Improvement"
	}
}

func Insights(s scoring.Stats) []string {
	var out []string
	switch {
	case s.Confidence >= 80:
		out = append(out, "Great confidence! You spoke clearly and with conviction.")
	case s.Confidence >= 60:
		out = append(out, "Good confidence level. Try to speak a bit more assertively.")
	default:
		out = append(out, "Work on building confidence. Practice speaking louder and clearer.")
	}
	switch {
	case s.Engagement >= 80:
		out = append(out, "Excellent engagement! You maintained great conversation flow.")
	case s.Engagement >= 60:
		out = append(out, "Good engagement. Try asking more questions to keep conversations active.")
	default:
		out = append(out, "Focus on engagement. Ask questions and show interest in responses.")
	}
	if s.FillerWords > 5 {
		out = append(out, "Try to reduce filler words like 'um', 'uh', and 'like' for clearer communication.")
	}
	if s.TotalMessages < 5 {
		out = append(out, "Consider having longer conversations to practice more scenarios.")
	}
	return out
}

// SpeakingShare is each participant's fraction of the words spoken. The user is
// keyed "you"; unattributed replies fall under "assistant".
func SpeakingShare(turns []orchestrator.Turn) map[string]float64 {
	share := map[string]float64{}
	total := 0.0
	for _, t := range turns {
		who := "you"
		if t.Role == chat.RoleAssistant {
			who = t.Speaker
			if who == "" {
				who = "assistant"
			}
		}
		n := float64(len(strings.Fields(t.Content)))
		share[who] += n
		total += n
	}
	if total == 0 {
		return nil
	}
	for k := range share {
		share[k] /= total
	}
	return share
}

// Filename follows the export naming of the web app.
func Filename(b Bundle) string {
	return fmt.Sprintf("happycapy-report-%s-%d.json", b.ScenarioID, b.Timestamp.UnixMilli())
}

// Write stores b under dir and returns the file path.
func Write(dir string, b Bundle) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(b))
	if err := writeJSON(path, b); err != nil {
		return "", fmt.Errorf("report write: %w", err)
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

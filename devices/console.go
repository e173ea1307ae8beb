// Package devices provides terminal-friendly speech devices: a synthesizer that
// prints what it would say and a recognizer backed by a speech-to-text service.
package devices

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/happycapy/rehearsal/speech"
)

// DefaultVoices is the catalog the console synthesizer announces.
var DefaultVoices = []speech.Voice{
	{Name: "Samantha (Enhanced)", Lang: "en-US"},
	{Name: "Daniel (Enhanced)", Lang: "en-GB"},
	{Name: "Karen", Lang: "en-AU"},
	{Name: "Moira", Lang: "en-IE"},
	{Name: "Fred", Lang: "en-US"},
	{Name: "Zarvox", Lang: "en-US"},
	{Name: "Thomas", Lang: "fr-FR"},
}

type Theme struct {
	Voice lipgloss.Style
	Text  lipgloss.Style
	Cut   lipgloss.Style
}

func DefaultTheme() Theme {
	return Theme{
		Voice: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Text:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e6edf3")),
		Cut:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")).Italic(true),
	}
}

// Console writes utterances to w and holds them for as long as reading them
// aloud would take, so interruption behaves like a real speaker.
type Console struct {
	w     io.Writer
	theme Theme
	wpm   float64
	delay time.Duration

	loadOnce sync.Once
	changed  chan struct{}

	mu     sync.Mutex
	voices []speech.Voice
	stop   chan struct{}
}

type ConsoleOption func(*Console)

// WithWordsPerMinute sets the speaking speed at rate 1.0.
func WithWordsPerMinute(wpm float64) ConsoleOption {
	return func(c *Console) {
		if wpm > 0 {
			c.wpm = wpm
		}
	}
}

// WithVoiceDelay publishes the voice catalog only after d, the way browsers
// populate theirs asynchronously.
func WithVoiceDelay(d time.Duration) ConsoleOption { return func(c *Console) { c.delay = d } }

func WithTheme(t Theme) ConsoleOption { return func(c *Console) { c.theme = t } }

func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		w:       w,
		theme:   DefaultTheme(),
		wpm:     170,
		changed: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.delay <= 0 {
		c.publish()
	} else {
		time.AfterFunc(c.delay, c.publish)
	}
	return c
}

func (c *Console) publish() {
	c.loadOnce.Do(func() {
		c.mu.Lock()
		c.voices = append([]speech.Voice(nil), DefaultVoices...)
		c.mu.Unlock()
		close(c.changed)
	})
}

func (c *Console) Voices() []speech.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]speech.Voice(nil), c.voices...)
}

func (c *Console) VoicesChanged() <-chan struct{} { return c.changed }

// Duration is how long text takes to say at the given rate.
func (c *Console) Duration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	minutes := float64(words) / (c.wpm * rate)
	return time.Duration(minutes * float64(time.Minute))
}

func (c *Console) Speak(ctx context.Context, u speech.Utterance) error {
	stop := make(chan struct{})
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.stop != nil {
		close(c.stop)
	}
	c.stop = stop
	c.mu.Unlock()

	name := "default"
	if u.Voice != nil {
		name = u.Voice.Name
	}
	fmt.Fprintf(c.w, "%s %s\n", c.theme.Voice.Render("🔊 "+name), c.theme.Text.Render(u.Text))

	t := time.NewTimer(c.Duration(u.Text, u.Rate))
	defer t.Stop()
	select {
	case <-t.C:
		c.mu.Lock()
		if c.stop == stop {
			c.stop = nil
		}
		c.mu.Unlock()
		return nil
	case <-stop:
		fmt.Fprintln(c.w, c.theme.Cut.Render("  (cut off)"))
		return context.Canceled
	case <-ctx.Done():
		fmt.Fprintln(c.w, c.theme.Cut.Render("  (cut off)"))
		return ctx.Err()
	}
}

// Cancel cuts the current utterance short.
func (c *Console) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

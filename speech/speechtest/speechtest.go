// Package speechtest provides scriptable speech devices for tests.
package speechtest

import (
	"context"
	"sync"

	"github.com/happycapy/rehearsal/speech"
)

// Synth is a Synthesizer whose utterances end when the test says so. Like a
// real device it plays one utterance at a time: Cancel, or a new Speak, cuts
// off whatever is playing.
type Synth struct {
	// AutoFinish makes Speak return Err immediately instead of waiting for Finish.
	AutoFinish bool
	Err        error

	mu      sync.Mutex
	voices  []speech.Voice
	changed chan struct{}
	spoken  []speech.Utterance
	cancels int
	stop    chan struct{}

	started chan speech.Utterance
	finish  chan error
}

func NewSynth(voices ...speech.Voice) *Synth {
	return &Synth{
		voices:  voices,
		changed: make(chan struct{}),
		started: make(chan speech.Utterance, 16),
		finish:  make(chan error),
	}
}

func (s *Synth) Voices() []speech.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech.Voice(nil), s.voices...)
}

func (s *Synth) VoicesChanged() <-chan struct{} { return s.changed }

// LoadVoices populates the catalog and fires VoicesChanged.
func (s *Synth) LoadVoices(voices ...speech.Voice) {
	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()
	close(s.changed)
}

func (s *Synth) Speak(ctx context.Context, u speech.Utterance) error {
	stop := make(chan struct{})
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.stop != nil {
		close(s.stop)
	}
	s.stop = stop
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.stop == stop {
			s.stop = nil
		}
		s.mu.Unlock()
	}()
	select {
	case s.started <- u:
	default:
	}
	if s.AutoFinish {
		return s.Err
	}
	select {
	case err := <-s.finish:
		return err
	case <-stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synth) Cancel() {
	s.mu.Lock()
	s.cancels++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()
}

// Started delivers every utterance as the device begins it.
func (s *Synth) Started() <-chan speech.Utterance { return s.started }

// Finish ends the utterance currently waiting in Speak with err.
func (s *Synth) Finish(err error) { s.finish <- err }

func (s *Synth) Spoken() []speech.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]speech.Utterance(nil), s.spoken...)
}

func (s *Synth) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

type recognition struct {
	alts []speech.Alternative
	err  error
}

// Recognizer answers each capture with whatever the test scripts next.
type Recognizer struct {
	mu      sync.Mutex
	configs []speech.RecognizerConfig

	started chan struct{}
	next    chan recognition
}

func NewRecognizer() *Recognizer {
	return &Recognizer{
		started: make(chan struct{}, 16),
		next:    make(chan recognition),
	}
}

func (r *Recognizer) Recognize(ctx context.Context, cfg speech.RecognizerConfig) ([]speech.Alternative, error) {
	r.mu.Lock()
	r.configs = append(r.configs, cfg)
	r.mu.Unlock()
	select {
	case r.started <- struct{}{}:
	default:
	}
	select {
	case res := <-r.next:
		return res.alts, res.err
	case <-ctx.Done():
		return nil, &speech.DeviceError{Code: speech.CodeAborted, Err: ctx.Err()}
	}
}

func (r *Recognizer) Started() <-chan struct{} { return r.started }

// Say completes the pending capture with the given transcripts, best first.
func (r *Recognizer) Say(transcripts ...string) {
	alts := make([]speech.Alternative, len(transcripts))
	for i, t := range transcripts {
		alts[i] = speech.Alternative{Transcript: t}
	}
	r.next <- recognition{alts: alts}
}

// Fail completes the pending capture with a device error code.
func (r *Recognizer) Fail(code string) {
	r.next <- recognition{err: &speech.DeviceError{Code: code}}
}

func (r *Recognizer) Configs() []speech.RecognizerConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]speech.RecognizerConfig(nil), r.configs...)
}

// Mic is a Microphone with a fixed permission answer.
type Mic struct {
	State      speech.Permission
	QueryErr   error
	RequestErr error
	// Gate, when set, holds Request until it is closed.
	Gate chan struct{}

	mu       sync.Mutex
	requests int
}

func (m *Mic) Permission(context.Context) (speech.Permission, error) {
	if m.QueryErr != nil {
		return speech.PermissionUnknown, m.QueryErr
	}
	return m.State, nil
}

func (m *Mic) Request(context.Context) error {
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
	if m.Gate != nil {
		<-m.Gate
	}
	return m.RequestErr
}

func (m *Mic) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

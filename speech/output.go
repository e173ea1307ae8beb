package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrUnsupported = errors.New("speech synthesis is not supported")

type OutputState int

const (
	OutputIdle OutputState = iota
	OutputSpeaking
)

func (s OutputState) String() string {
	if s == OutputSpeaking {
		return "speaking"
	}
	return "idle"
}

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeInterrupted
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unsupported"
	}
}

// Playback tracks one Speak request.
type Playback struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

func newPlayback() *Playback { return &Playback{done: make(chan struct{})} }

func (p *Playback) finish(o Outcome, err error) {
	p.outcome, p.err = o, err
	close(p.done)
}

// Done is closed once the utterance has ended, failed or been interrupted.
func (p *Playback) Done() <-chan struct{} { return p.done }

// Outcome is valid after Done is closed.
func (p *Playback) Outcome() Outcome { return p.outcome }

func (p *Playback) Err() error { return p.err }

func (p *Playback) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return OutcomeInterrupted, ctx.Err()
	}
}

// Output owns the synthesizer. At most one utterance is in flight: a new Speak
// interrupts the previous one rather than queueing behind it.
type Output struct {
	synth Synthesizer
	log   logrus.FieldLogger

	ready chan struct{}
	quit  chan struct{}

	// device is held for the whole of a synth.Speak call so a preempted
	// utterance has returned before the next one reaches the device.
	device sync.Mutex

	mu      sync.Mutex
	voices  []Voice
	state   OutputState
	seq     uint64
	cancel  context.CancelFunc
	onEnd   func(text string)
	closed  bool
	closing sync.Once
}

// NewOutput wraps synth; a nil synth yields a controller that reports
// OutcomeUnsupported for every request.
func NewOutput(synth Synthesizer, log logrus.FieldLogger) *Output {
	if log == nil {
		log = logrus.StandardLogger()
	}
	o := &Output{
		synth: synth,
		log:   log.WithField("component", "speech-output"),
		ready: make(chan struct{}),
		quit:  make(chan struct{}),
	}
	if synth == nil {
		close(o.ready)
		return o
	}
	if voices := synth.Voices(); len(voices) > 0 {
		o.voices = voices
		close(o.ready)
		return o
	}
	go o.awaitVoices()
	return o
}

func (o *Output) awaitVoices() {
	select {
	case <-o.synth.VoicesChanged():
		voices := o.synth.Voices()
		o.mu.Lock()
		o.voices = voices
		o.mu.Unlock()
		o.log.WithField("voices", len(voices)).Debug("voice catalog loaded")
		close(o.ready)
	case <-o.quit:
	}
}

// Init waits for the voice catalog. It returns ErrUnsupported without a device.
func (o *Output) Init(ctx context.Context) error {
	if o.synth == nil {
		return ErrUnsupported
	}
	select {
	case <-o.ready:
		return nil
	case <-o.quit:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Output) Supported() bool { return o.synth != nil }

// OnEnd registers a callback for utterances that play to the end. Interrupted
// and failed utterances do not trigger it. It runs before the Playback's Done
// channel closes.
func (o *Output) OnEnd(fn func(text string)) {
	o.mu.Lock()
	o.onEnd = fn
	o.mu.Unlock()
}

func (o *Output) Speak(text string, profile *VoiceProfile) *Playback {
	pb := newPlayback()

	o.mu.Lock()
	if o.synth == nil || o.closed {
		o.mu.Unlock()
		pb.finish(OutcomeUnsupported, ErrUnsupported)
		return pb
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.synth.Cancel()
	o.seq++
	id := o.seq
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.state = OutputSpeaking
	o.mu.Unlock()

	go o.play(ctx, id, pb, text, profile)
	return pb
}

func (o *Output) play(ctx context.Context, id uint64, pb *Playback, text string, profile *VoiceProfile) {
	outcome, err := o.render(ctx, id, text, profile)

	o.mu.Lock()
	if o.seq == id {
		o.state = OutputIdle
		o.cancel = nil
	}
	onEnd := o.onEnd
	o.mu.Unlock()

	if err != nil && outcome == OutcomeFailed {
		o.log.WithError(err).Warn("speech playback failed")
	}
	if outcome == OutcomeCompleted && onEnd != nil {
		onEnd(text)
	}
	pb.finish(outcome, err)
}

func (o *Output) render(ctx context.Context, id uint64, text string, profile *VoiceProfile) (Outcome, error) {
	select {
	case <-o.ready:
	case <-ctx.Done():
		return OutcomeInterrupted, ctx.Err()
	}

	o.device.Lock()
	defer o.device.Unlock()
	o.mu.Lock()
	current := o.seq == id
	o.mu.Unlock()
	if !current || ctx.Err() != nil {
		return OutcomeInterrupted, context.Canceled
	}

	u := profile.utterance(text)
	var p VoiceProfile
	if profile != nil {
		p = *profile
	}
	if v, ok := o.SelectVoice(p); ok {
		u.Voice = &v
	}

	err := o.synth.Speak(ctx, u)
	switch {
	case ctx.Err() != nil:
		return OutcomeInterrupted, ctx.Err()
	case err != nil:
		return OutcomeFailed, err
	}
	return OutcomeCompleted, nil
}

// SelectVoice resolves a voice from the currently loaded catalog.
func (o *Output) SelectVoice(p VoiceProfile) (Voice, bool) {
	o.mu.Lock()
	voices := o.voices
	o.mu.Unlock()
	return SelectVoice(voices, p)
}

// Stop cancels any in-flight utterance. Safe to call in any state.
func (o *Output) Stop() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.seq++
	o.state = OutputIdle
	o.mu.Unlock()
	if o.synth != nil {
		o.synth.Cancel()
	}
}

func (o *Output) IsSpeaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == OutputSpeaking
}

func (o *Output) State() OutputState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close stops playback and releases the controller; later Speak calls report
// OutcomeUnsupported.
func (o *Output) Close() error {
	o.Stop()
	o.closing.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		close(o.quit)
	})
	return nil
}

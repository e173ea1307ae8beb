// Package orchestrator runs one rehearsal session: it owns the transcript, the
// live scores and the speech devices, and decides when a reply may be requested.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/persona"
	"github.com/happycapy/rehearsal/scenario"
	"github.com/happycapy/rehearsal/scheduler"
	"github.com/happycapy/rehearsal/scoring"
	"github.com/happycapy/rehearsal/speech"
)

// Devices are the external capabilities a session drives. Only Endpoint is
// required; a missing recognizer or synthesizer degrades the session to text.
type Devices struct {
	Endpoint    chat.Endpoint
	Recognizer  speech.Recognizer
	Microphone  speech.Microphone
	Synthesizer speech.Synthesizer
}

// Hooks observe a session. They run outside the session lock, on whichever
// goroutine produced the event, and must not block for long.
type Hooks struct {
	OnTurn    func(Turn)
	OnToken   func(string)
	OnSpeaker func(name string)
	OnStats   func(scoring.Stats)
	OnError   func(*Error)
}

type Options struct {
	Locale    string
	Seed      uint64
	Scheduler scheduler.Config
	Lexicon   *scoring.Lexicon
	// Clock drives the autonomous-turn timer; nil means wall time.
	Clock  scheduler.Clock
	Hooks  Hooks
	Logger logrus.FieldLogger
}

type Session struct {
	scn      *scenario.Scenario
	cast     *persona.Cast
	endpoint chat.Endpoint
	scorer   *scoring.Scorer
	input    *speech.Input
	output   *speech.Output
	sched    *scheduler.Scheduler
	hooks    Hooks
	log      logrus.FieldLogger

	mu          sync.Mutex
	state       State
	started     bool
	closed      bool
	groupActive bool
	transcript  Transcript
	stats       scoring.Stats
	speaker     string
	lastReq     *chat.Request
	lastErr     *Error
	seq         uint64
	cancel      context.CancelFunc
}

func New(scn *scenario.Scenario, dev Devices, opts Options) (*Session, error) {
	if scn == nil || len(scn.Personas) == 0 {
		return nil, errors.New("orchestrator: scenario has no personas")
	}
	if dev.Endpoint == nil {
		return nil, errors.New("orchestrator: chat endpoint is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"component": "session", "scenario": scn.ID})

	lex := scoring.DefaultLexicon()
	if opts.Lexicon != nil {
		lex = *opts.Lexicon
	}

	s := &Session{
		scn:      scn,
		cast:     persona.NewResolver(opts.Seed).Cast(scn),
		endpoint: dev.Endpoint,
		scorer:   scoring.New(lex),
		input:    speech.NewInput(dev.Recognizer, dev.Microphone, opts.Locale, log),
		output:   speech.NewOutput(dev.Synthesizer, log),
		hooks:    opts.Hooks,
		log:      log,
	}
	s.input.SetHandlers(speech.InputHandlers{
		OnResult: s.heard,
		OnError:  func(ie *speech.InputError) { s.surface(inputError(ie)) },
	})
	if scn.IsGroup() {
		sopts := []scheduler.Option{scheduler.WithSeed(opts.Seed + 1), scheduler.WithLogger(log)}
		if opts.Clock != nil {
			sopts = append(sopts, scheduler.WithClock(opts.Clock))
		}
		s.sched = scheduler.New(opts.Scheduler, s.autonomous, s.busy, sopts...)
	}
	return s, nil
}

func (s *Session) Scenario() *scenario.Scenario { return s.scn }

func (s *Session) Cast() *persona.Cast { return s.cast }

// Start seeds the scores, readies speech output and sends the opening prompt.
// Calling it again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.stats = scoring.Start(s.stats)
	stats := s.stats
	s.mu.Unlock()
	s.emitStats(stats)

	s.input.CheckSupport(ctx)
	if err := s.output.Init(ctx); err != nil {
		if !errors.Is(err, speech.ErrUnsupported) {
			return err
		}
		s.surface(&Error{Kind: KindUnsupported, Message: msgNoSynthesis, Err: err})
	}

	kickoff := chat.Kickoff(s.scn)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateAwaitingReply {
		s.mu.Unlock()
		return ErrBusy
	}
	turn := s.transcript.append(chat.RoleUser, kickoff, "")
	req := s.request(false)
	rctx, id := s.begin(ctx, req)
	if s.sched != nil {
		s.groupActive = true
		s.sched.Resume()
	}
	s.mu.Unlock()

	s.log.WithField("mode", s.scn.Mode()).Info("session started")
	s.emitTurn(turn)
	return s.exchange(rctx, id, req)
}

// Submit appends a user turn, scores it and waits for the reply.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case text == "":
		s.mu.Unlock()
		return ErrEmpty
	case s.state == StateAwaitingReply:
		s.mu.Unlock()
		return ErrBusy
	}
	turn := s.transcript.append(chat.RoleUser, text, "")
	s.stats = s.scorer.Score(s.stats, text)
	stats := s.stats
	req := s.request(false)
	rctx, id := s.begin(ctx, req)
	s.mu.Unlock()

	s.emitTurn(turn)
	s.emitStats(stats)
	return s.exchange(rctx, id, req)
}

// Retry re-sends the request that failed last.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.state == StateAwaitingReply:
		s.mu.Unlock()
		return ErrBusy
	case s.lastErr == nil || s.lastReq == nil:
		s.mu.Unlock()
		return ErrNothingToRetry
	}
	req := *s.lastReq
	rctx, id := s.begin(ctx, req)
	s.mu.Unlock()

	s.log.Info("retrying last request")
	return s.exchange(rctx, id, req)
}

// Pause stops autonomous turns in a group session. The scheduler is toggled
// under the session lock so it always agrees with GroupActive; it never calls
// back into the session while holding its own lock.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.sched == nil || s.closed || !s.groupActive {
		s.mu.Unlock()
		return
	}
	s.groupActive = false
	s.sched.Pause()
	s.mu.Unlock()
	s.log.Info("group discussion paused")
}

// Resume restarts autonomous turns after Pause. It does nothing before Start.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.sched == nil || s.closed || !s.started || s.groupActive {
		s.mu.Unlock()
		return
	}
	s.groupActive = true
	s.sched.Resume()
	s.mu.Unlock()
	s.log.Info("group discussion resumed")
}

// Listen starts a speech capture; the recognized text is submitted as if typed.
func (s *Session) Listen(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.input.ClearError()
	s.input.Start(ctx)
	if s.input.State() == speech.InputUnsupported {
		e := &Error{Kind: KindUnsupported, Message: "Speech recognition is not supported on this system."}
		if le := s.input.LastError(); le != nil {
			e.Message = le.Message
		}
		return e
	}
	return nil
}

func (s *Session) StopListening() { s.input.Stop() }

func (s *Session) StopSpeaking() { s.output.Stop() }

// Close tears everything down. Replies and captures still in flight are
// discarded.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.groupActive = false
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if s.sched != nil {
		s.sched.Close()
	}
	s.input.Close()
	s.output.Close()
	s.log.Info("session closed")
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Stats() scoring.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Turns()
}

// GroupActive reports whether autonomous turns are currently scheduled.
func (s *Session) GroupActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupActive
}

// Speaker is the persona that spoke last.
func (s *Session) Speaker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaker
}

// LastError is the failure of the most recent request, cleared by the next one.
func (s *Session) LastError() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) IsListening() bool { return s.input.IsListening() }

func (s *Session) IsSpeaking() bool { return s.output.IsSpeaking() }

func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Report{
		ScenarioID:    s.scn.ID,
		ScenarioTitle: s.scn.Title,
		Stats:         s.stats,
		Turns:         s.transcript.Turns(),
		GeneratedAt:   time.Now(),
	}
}

// request must be called with mu held.
func (s *Session) request(autonomous bool) chat.Request {
	return chat.Request{
		Messages:   s.transcript.Messages(),
		Scenario:   s.scn,
		Theme:      s.scn.Theme,
		Autonomous: autonomous,
	}
}

// begin must be called with mu held.
func (s *Session) begin(ctx context.Context, req chat.Request) (context.Context, uint64) {
	rctx, cancel := context.WithCancel(ctx)
	s.seq++
	s.cancel = cancel
	s.state = StateAwaitingReply
	s.lastReq = &req
	s.lastErr = nil
	return rctx, s.seq
}

func (s *Session) current(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == id && !s.closed
}

func (s *Session) exchange(ctx context.Context, id uint64, req chat.Request) error {
	onToken := func(tok string) {
		if s.hooks.OnToken != nil && s.current(id) {
			s.hooks.OnToken(tok)
		}
	}
	reply, err := chat.Collect(s.endpoint.Stream(ctx, req), onToken)
	return s.complete(id, reply, err)
}

func (s *Session) complete(id uint64, reply string, err error) error {
	s.mu.Lock()
	if s.seq != id || s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateReady
	if err == nil && strings.TrimSpace(reply) == "" {
		err = &Error{Kind: KindNetwork, Message: msgEmptyReply}
	}
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			e = &Error{Kind: KindNetwork, Message: msgChat, Err: err}
		}
		s.lastErr = e
		s.mu.Unlock()
		s.surface(e)
		return e
	}

	speaker, text := attribute(reply)
	var profile *speech.VoiceProfile
	if m, ok := s.cast.Sole(); ok {
		if speaker == "" {
			speaker = m.Name
		}
		profile = &m.Voice
	} else if m, ok := s.cast.Lookup(speaker); ok {
		profile = &m.Voice
	}
	turn := s.transcript.append(chat.RoleAssistant, reply, speaker)
	s.stats = scoring.AssistantReply(s.stats)
	stats := s.stats
	changed := speaker != "" && speaker != s.speaker
	if speaker != "" {
		s.speaker = speaker
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"speaker": speaker, "turn": turn.ID}).Debug("reply received")
	s.emitTurn(turn)
	s.emitStats(stats)
	if changed && s.hooks.OnSpeaker != nil {
		s.hooks.OnSpeaker(speaker)
	}
	s.speak(text, profile)
	return nil
}

func (s *Session) speak(text string, profile *speech.VoiceProfile) {
	pb := s.output.Speak(text, profile)
	go func() {
		<-pb.Done()
		if pb.Outcome() == speech.OutcomeFailed {
			s.surface(&Error{Kind: KindPlayback, Message: msgPlayback, Err: pb.Err()})
		}
	}()
}

// heard receives recognized speech from the input controller.
func (s *Session) heard(transcript string) {
	err := s.Submit(context.Background(), transcript)
	switch {
	case err == nil, errors.Is(err, ErrClosed):
	case errors.Is(err, ErrBusy):
		s.log.WithField("transcript", transcript).Warn("speech arrived while a reply was in flight; dropped")
		s.surface(&Error{Kind: KindTransientDevice, Message: "Still waiting for a reply. Please speak again in a moment.", Err: err})
	default:
		s.log.WithError(err).Debug("spoken message not delivered")
	}
}

// busy tells the scheduler to hold off while anyone is talking.
func (s *Session) busy() bool {
	s.mu.Lock()
	awaiting := s.state == StateAwaitingReply
	s.mu.Unlock()
	return awaiting || s.output.IsSpeaking() || s.input.IsListening()
}

// autonomous lets the group carry on without user input. The request is not
// a user turn and is never scored.
func (s *Session) autonomous() {
	s.mu.Lock()
	if s.closed || !s.groupActive || s.state == StateAwaitingReply {
		s.mu.Unlock()
		return
	}
	req := s.request(true)
	ctx, id := s.begin(context.Background(), req)
	s.mu.Unlock()

	s.log.Debug("autonomous turn")
	if err := s.exchange(ctx, id, req); err != nil && !errors.Is(err, ErrClosed) {
		s.log.WithError(err).Debug("autonomous turn failed")
	}
}

func (s *Session) surface(e *Error) {
	s.log.WithFields(logrus.Fields{"kind": e.Kind}).Info(e.Message)
	if s.hooks.OnError != nil {
		s.hooks.OnError(e)
	}
}

func (s *Session) emitTurn(t Turn) {
	if s.hooks.OnTurn != nil {
		s.hooks.OnTurn(t)
	}
}

func (s *Session) emitStats(st scoring.Stats) {
	if s.hooks.OnStats != nil {
		s.hooks.OnStats(st)
	}
}

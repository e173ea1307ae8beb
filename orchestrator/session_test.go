package orchestrator

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/scenario"
	"github.com/happycapy/rehearsal/scheduler"
	"github.com/happycapy/rehearsal/scoring"
	"github.com/happycapy/rehearsal/speech"
	"github.com/happycapy/rehearsal/speech/speechtest"
)

type reply struct {
	tokens []string
	err    error
	gate   chan struct{}
}

func say(tokens ...string) reply { return reply{tokens: tokens} }

type fakeEndpoint struct {
	mu      sync.Mutex
	replies []reply
	reqs    []chat.Request
	calls   chan chat.Request
}

func newEndpoint(replies ...reply) *fakeEndpoint {
	return &fakeEndpoint{replies: replies, calls: make(chan chat.Request, 16)}
}

func (f *fakeEndpoint) Stream(ctx context.Context, req chat.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.reqs = append(f.reqs, req)
		r := say("Okay.")
		if len(f.replies) > 0 {
			r, f.replies = f.replies[0], f.replies[1:]
		}
		f.mu.Unlock()
		f.calls <- req

		if r.gate != nil {
			select {
			case <-r.gate:
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			}
		}
		if r.err != nil {
			yield("", r.err)
			return
		}
		for _, t := range r.tokens {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (f *fakeEndpoint) requests() []chat.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Request(nil), f.reqs...)
}

type recorder struct {
	mu       sync.Mutex
	turns    []Turn
	tokens   []string
	speakers []string
	stats    []scoring.Stats
	errs     []*Error
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnTurn:    func(t Turn) { r.mu.Lock(); r.turns = append(r.turns, t); r.mu.Unlock() },
		OnToken:   func(s string) { r.mu.Lock(); r.tokens = append(r.tokens, s); r.mu.Unlock() },
		OnSpeaker: func(n string) { r.mu.Lock(); r.speakers = append(r.speakers, n); r.mu.Unlock() },
		OnStats:   func(s scoring.Stats) { r.mu.Lock(); r.stats = append(r.stats, s); r.mu.Unlock() },
		OnError:   func(e *Error) { r.mu.Lock(); r.errs = append(r.errs, e); r.mu.Unlock() },
	}
}

func (r *recorder) surfaced() []*Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Error(nil), r.errs...)
}

// fakeClock hands timers to the test instead of running them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fire runs the pending timer, if any.
func (c *fakeClock) fire() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			next = t
		}
	}
	if next != nil {
		next.stopped = true
	}
	c.mu.Unlock()
	if next == nil {
		return false
	}
	next.f()
	return true
}

// fireStale runs every timer that was stopped, as a racing timer would.
func (c *fakeClock) fireStale() {
	c.mu.Lock()
	var stale []*fakeTimer
	for _, t := range c.timers {
		if t.stopped {
			stale = append(stale, t)
		}
	}
	c.mu.Unlock()
	for _, t := range stale {
		t.f()
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func nextCall(t *testing.T, ep *fakeEndpoint) chat.Request {
	t.Helper()
	select {
	case req := <-ep.calls:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("endpoint was never called")
	}
	return chat.Request{}
}

func spoken(t *testing.T, synth *speechtest.Synth) speech.Utterance {
	t.Helper()
	select {
	case u := <-synth.Started():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("nothing was spoken")
	}
	return speech.Utterance{}
}

func lookup(t *testing.T, id string) *scenario.Scenario {
	t.Helper()
	c, err := scenario.Builtin()
	if err != nil {
		t.Fatal(err)
	}
	s, err := c.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

var voices = []speech.Voice{
	{Name: "Samantha (Enhanced)", Lang: "en-US"},
	{Name: "Daniel (Enhanced)", Lang: "en-GB"},
}

type fixture struct {
	s     *Session
	ep    *fakeEndpoint
	synth *speechtest.Synth
	rec   *recorder
	clock *fakeClock
}

func newFixture(t *testing.T, id string, dev Devices, replies ...reply) *fixture {
	t.Helper()
	f := &fixture{
		ep:    newEndpoint(replies...),
		synth: speechtest.NewSynth(voices...),
		rec:   &recorder{},
		clock: &fakeClock{},
	}
	f.synth.AutoFinish = true
	dev.Endpoint = f.ep
	if dev.Synthesizer == nil {
		dev.Synthesizer = f.synth
	}
	s, err := New(lookup(t, id), dev, Options{
		Seed:      1,
		Scheduler: scheduler.Config{MinDelay: time.Second, MaxDelay: time.Second},
		Clock:     f.clock,
		Hooks:     f.rec.hooks(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	f.s = s
	return f
}

func count(turns []Turn, role chat.Role) int {
	n := 0
	for _, t := range turns {
		if t.Role == role {
			n++
		}
	}
	return n
}

func TestStartAssistant(t *testing.T) {
	f := newFixture(t, "personal-assistant", Devices{}, say("Hi! ", "How are you feeling?"))
	ctx := context.Background()

	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	turns := f.s.Transcript()
	if len(turns) != 2 || count(turns, chat.RoleAssistant) != 1 {
		t.Fatalf("transcript = %+v", turns)
	}
	if turns[0].Content != chat.Kickoff(f.s.Scenario()) {
		t.Fatalf("kickoff = %q", turns[0].Content)
	}
	if turns[1].Speaker != "Dr. Riley" || turns[1].Content != "Hi! How are you feeling?" || turns[1].ID == "" {
		t.Fatalf("reply turn = %+v", turns[1])
	}

	// Seeding is reported first; the kickoff prompt is not scored but the reply
	// earns the usual assistant bonus.
	f.rec.mu.Lock()
	seeded := f.rec.stats[0]
	tokens := f.rec.tokens
	f.rec.mu.Unlock()
	if seeded.Confidence != 75 || seeded.Engagement != 70 || seeded.Coherence != 80 || !seeded.Started {
		t.Fatalf("seeded stats = %+v", seeded)
	}
	if got := f.s.Stats(); got.Confidence != 75 || got.Engagement != 72 || got.Coherence != 81 || got.TotalMessages != 1 {
		t.Fatalf("stats after kickoff = %+v", got)
	}
	if !slices.Equal(tokens, []string{"Hi! ", "How are you feeling?"}) {
		t.Fatalf("tokens = %q", tokens)
	}

	u := spoken(t, f.synth)
	if u.Text != "Hi! How are you feeling?" || u.Rate != 1.0 || u.Pitch != 1.1 {
		t.Fatalf("spoken = %+v", u)
	}
	if f.s.State() != StateReady {
		t.Fatalf("state = %v", f.s.State())
	}

	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(f.ep.requests()); n != 1 {
		t.Fatalf("second Start sent %d requests", n)
	}
	if f.s.GroupActive() {
		t.Fatal("assistant sessions never go active")
	}
}

func TestSubmitScoresUtterance(t *testing.T) {
	f := newFixture(t, "job-interview", Devices{})
	ctx := context.Background()
	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	before := f.s.Stats()

	if err := f.s.Submit(ctx, "um, I am so anxious about this interview"); err != nil {
		t.Fatal(err)
	}
	after := f.s.Stats()
	if after.FillerWords != before.FillerWords+1 || after.AnxietyMarkers != before.AnxietyMarkers+1 {
		t.Fatalf("counters %+v -> %+v", before, after)
	}
	if after.Confidence != before.Confidence-8 {
		t.Fatalf("confidence %d -> %d", before.Confidence, after.Confidence)
	}

	reqs := f.ep.requests()
	last := reqs[len(reqs)-1]
	if n := len(last.Messages); n != 3 || last.Messages[2].Content != "um, I am so anxious about this interview" {
		t.Fatalf("request messages = %+v", last.Messages)
	}
	if last.Autonomous || last.Theme != f.s.Scenario().Theme {
		t.Fatalf("request = %+v", last)
	}
}

func TestSubmitRejected(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, "personal-assistant", Devices{}, reply{tokens: []string{"Sure."}, gate: gate})
	ctx := context.Background()

	if err := f.s.Submit(ctx, "   "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty submit = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- f.s.Submit(ctx, "hello there") }()
	nextCall(t, f.ep)

	if err := f.s.Submit(ctx, "are you there?"); !errors.Is(err, ErrBusy) {
		t.Fatalf("submit while awaiting = %v", err)
	}
	if err := f.s.Retry(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("retry while awaiting = %v", err)
	}
	if n := len(f.s.Transcript()); n != 1 {
		t.Fatalf("transcript grew to %d while busy", n)
	}
	if f.s.State() != StateAwaitingReply {
		t.Fatalf("state = %v", f.s.State())
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if err := f.s.Retry(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("retry after success = %v", err)
	}
}

func TestFailureAndRetry(t *testing.T) {
	boom := errors.New("connection reset")
	f := newFixture(t, "personal-assistant", Devices{}, reply{err: boom}, say("Welcome back."))
	ctx := context.Background()

	err := f.s.Submit(ctx, "I feel ready today")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindNetwork || !errors.Is(err, boom) {
		t.Fatalf("Submit = %v", err)
	}
	stats := f.s.Stats()
	turns := f.s.Transcript()
	if len(turns) != 1 || turns[0].Role != chat.RoleUser {
		t.Fatalf("transcript after failure = %+v", turns)
	}
	if f.s.State() != StateReady || f.s.LastError() == nil {
		t.Fatalf("state = %v, last error = %v", f.s.State(), f.s.LastError())
	}
	if errs := f.rec.surfaced(); len(errs) != 1 || errs[0].Kind != KindNetwork {
		t.Fatalf("surfaced errors = %v", errs)
	}

	if err := f.s.Retry(ctx); err != nil {
		t.Fatal(err)
	}
	reqs := f.ep.requests()
	if len(reqs) != 2 || !slices.Equal(reqs[0].Messages, reqs[1].Messages) {
		t.Fatalf("retry did not repeat the request: %+v", reqs)
	}
	if got := f.s.Stats(); got.Confidence != stats.Confidence || got.FillerWords != stats.FillerWords {
		t.Fatal("retry must not score the utterance again")
	}
	if n := count(f.s.Transcript(), chat.RoleAssistant); n != 1 {
		t.Fatalf("assistant turns = %d", n)
	}
	if f.s.LastError() != nil {
		t.Fatal("success should clear the last error")
	}
}

func TestEmptyReply(t *testing.T) {
	f := newFixture(t, "personal-assistant", Devices{}, say("  "))
	err := f.s.Submit(context.Background(), "hello")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindNetwork {
		t.Fatalf("Submit = %v", err)
	}
	if n := count(f.s.Transcript(), chat.RoleAssistant); n != 0 {
		t.Fatal("an empty reply must not become a turn")
	}
}

func TestGroupAttribution(t *testing.T) {
	f := newFixture(t, "family-dinner", Devices{},
		say("**Jamie**: ", "No way, I want the beach!"),
		say("**Grandpa**: Back in my day..."),
		say("Everyone laughs."),
	)
	ctx := context.Background()

	if err := f.s.Submit(ctx, "What about the mountains?"); err != nil {
		t.Fatal(err)
	}
	u := spoken(t, f.synth)
	if u.Text != "No way, I want the beach!" || u.Rate != 0.85 {
		t.Fatalf("spoken = %+v", u)
	}
	turns := f.s.Transcript()
	if last := turns[len(turns)-1]; last.Speaker != "Jamie" || last.Content != "**Jamie**: No way, I want the beach!" {
		t.Fatalf("turn = %+v", last)
	}
	if f.s.Speaker() != "Jamie" {
		t.Fatalf("speaker = %q", f.s.Speaker())
	}

	waitFor(t, "playback to end", func() bool { return !f.s.IsSpeaking() })
	if err := f.s.Submit(ctx, "Grandpa?"); err != nil {
		t.Fatal(err)
	}
	if u := spoken(t, f.synth); u.Text != "Back in my day..." || u.Rate != 2.0 {
		t.Fatalf("unknown speaker spoken = %+v", u)
	}

	waitFor(t, "playback to end", func() bool { return !f.s.IsSpeaking() })
	if err := f.s.Submit(ctx, "Ha"); err != nil {
		t.Fatal(err)
	}
	if u := spoken(t, f.synth); u.Text != "Everyone laughs." {
		t.Fatalf("unattributed spoken = %+v", u)
	}
	turns = f.s.Transcript()
	if last := turns[len(turns)-1]; last.Speaker != "" {
		t.Fatalf("unattributed turn has speaker %q", last.Speaker)
	}

	f.rec.mu.Lock()
	speakers := f.rec.speakers
	f.rec.mu.Unlock()
	if !slices.Equal(speakers, []string{"Jamie", "Grandpa"}) {
		t.Fatalf("speaker changes = %v", speakers)
	}
}

func TestAutonomousTurns(t *testing.T) {
	f := newFixture(t, "classroom-discussion", Devices{})
	ctx := context.Background()
	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !f.s.GroupActive() || f.clock.pending() != 1 {
		t.Fatalf("active = %v, pending timers = %d", f.s.GroupActive(), f.clock.pending())
	}
	waitFor(t, "kickoff playback", func() bool { return !f.s.IsSpeaking() })
	before := f.s.Stats()
	userTurns := count(f.s.Transcript(), chat.RoleUser)

	f.clock.fire()
	reqs := f.ep.requests()
	if len(reqs) != 2 || !reqs[1].Autonomous {
		t.Fatalf("requests = %+v", reqs)
	}
	turns := f.s.Transcript()
	if count(turns, chat.RoleUser) != userTurns || count(turns, chat.RoleAssistant) != 2 {
		t.Fatalf("autonomous turn changed user turns: %+v", turns)
	}
	after := f.s.Stats()
	if after.Confidence != before.Confidence || after.FillerWords != before.FillerWords || after.TotalMessages != before.TotalMessages+1 {
		t.Fatalf("stats %+v -> %+v", before, after)
	}
	if f.clock.pending() != 1 {
		t.Fatalf("pending timers = %d", f.clock.pending())
	}

	// Pausing mid-timer silences the group until resumed.
	f.s.Pause()
	if f.s.GroupActive() || f.clock.pending() != 0 {
		t.Fatal("pause must tear the timer down")
	}
	f.clock.fireStale()
	if n := len(f.ep.requests()); n != 2 {
		t.Fatalf("%d requests after pause", n)
	}

	f.s.Resume()
	if !f.s.GroupActive() || f.clock.pending() != 1 {
		t.Fatal("resume must arm a timer")
	}
	waitFor(t, "playback", func() bool { return !f.s.IsSpeaking() })
	f.clock.fire()
	if n := len(f.ep.requests()); n != 3 {
		t.Fatalf("%d requests after resume", n)
	}
}

func TestPauseResumeAgree(t *testing.T) {
	f := newFixture(t, "family-dinner", Devices{})
	if err := f.s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); f.s.Pause() }()
		go func() { defer wg.Done(); f.s.Resume() }()
		wg.Wait()
		if active, sched := f.s.GroupActive(), f.s.sched.Active(); active != sched {
			t.Fatalf("round %d: group active = %v, scheduler active = %v", i, active, sched)
		}
	}
}

func TestAutonomousHoldsWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, "friend-hangout", Devices{}, reply{tokens: []string{"**Emma**: Hi!"}, gate: gate})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.s.Start(ctx) }()
	nextCall(t, f.ep)
	waitFor(t, "scheduler to arm", func() bool { return f.clock.pending() == 1 })

	f.clock.fire()
	if n := len(f.ep.requests()); n != 1 {
		t.Fatalf("timer fired a request while a reply was in flight (%d)", n)
	}
	if f.clock.pending() != 1 {
		t.Fatal("scheduler should wait for the next interval")
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestAutonomousHoldsWhileSpeaking(t *testing.T) {
	synth := speechtest.NewSynth(voices...)
	f := newFixture(t, "friend-hangout", Devices{Synthesizer: synth}, say("**Casey**: Those boots are everywhere."))
	if err := f.s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	spoken(t, synth)
	f.clock.fire()
	if n := len(f.ep.requests()); n != 1 {
		t.Fatal("a persona must not be interrupted by an autonomous turn")
	}
	synth.Finish(nil)
	waitFor(t, "playback", func() bool { return !f.s.IsSpeaking() })
	f.clock.fire()
	if n := len(f.ep.requests()); n != 2 {
		t.Fatalf("requests = %d", n)
	}
}

func TestClose(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	f := newFixture(t, "workplace-meeting", Devices{}, say("**Sarah**: Welcome."), reply{tokens: []string{"late"}, gate: gate})
	ctx := context.Background()
	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback", func() bool { return !f.s.IsSpeaking() })

	done := make(chan error, 1)
	go func() { done <- f.s.Submit(ctx, "I have an idea for the campaign") }()
	nextCall(t, f.ep)

	f.s.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("in-flight submit = %v", err)
	}
	if n := count(f.s.Transcript(), chat.RoleAssistant); n != 1 {
		t.Fatalf("late reply was recorded (%d assistant turns)", n)
	}
	if f.clock.pending() != 0 || f.s.GroupActive() {
		t.Fatal("close must stop the scheduler")
	}
	f.clock.fireStale()
	if err := f.s.Submit(ctx, "hello?"); !errors.Is(err, ErrClosed) {
		t.Fatalf("submit after close = %v", err)
	}
	if err := f.s.Start(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("start after close = %v", err)
	}
	if err := f.s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestListenSubmitsSpeech(t *testing.T) {
	rec := speechtest.NewRecognizer()
	mic := &speechtest.Mic{State: speech.PermissionGranted}
	f := newFixture(t, "personal-assistant", Devices{Recognizer: rec, Microphone: mic}, say("That sounds fun!"))

	if err := f.s.Listen(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-rec.Started()
	if !f.s.IsListening() {
		t.Fatal("expected to be listening")
	}
	rec.Say("Should we go camping?")

	waitFor(t, "reply", func() bool { return count(f.s.Transcript(), chat.RoleAssistant) == 1 })
	turns := f.s.Transcript()
	if turns[0].Content != "Should we go camping?" {
		t.Fatalf("transcript = %+v", turns)
	}
	if got := f.s.Stats(); got.Engagement != 70+3+2 {
		t.Fatalf("engagement = %d", got.Engagement)
	}
	if cfg := rec.Configs()[0]; cfg.Locale != "en-US" || cfg.Continuous || cfg.InterimResults {
		t.Fatalf("recognizer config = %+v", cfg)
	}
}

func TestListenErrors(t *testing.T) {
	f := newFixture(t, "personal-assistant", Devices{})
	err := f.s.Listen(context.Background())
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindUnsupported {
		t.Fatalf("Listen without recognizer = %v", err)
	}

	rec := speechtest.NewRecognizer()
	mic := &speechtest.Mic{State: speech.PermissionPrompt, RequestErr: errors.New("dismissed")}
	g := newFixture(t, "personal-assistant", Devices{Recognizer: rec, Microphone: mic})
	if err := g.s.Listen(context.Background()); err != nil {
		t.Fatal(err)
	}
	errs := g.rec.surfaced()
	if len(errs) != 1 || errs[0].Kind != KindPermission {
		t.Fatalf("surfaced = %v", errs)
	}

	mic.RequestErr = nil
	h := newFixture(t, "personal-assistant", Devices{Recognizer: rec, Microphone: mic})
	if err := h.s.Listen(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-rec.Started()
	rec.Fail(speech.CodeNoSpeech)
	waitFor(t, "no-speech error", func() bool { return len(h.rec.surfaced()) == 1 })
	if e := h.rec.surfaced()[0]; e.Kind != KindTransientDevice {
		t.Fatalf("kind = %v", e.Kind)
	}
	if n := len(h.ep.requests()); n != 0 {
		t.Fatal("a failed capture must not reach the endpoint")
	}
}

type failingSynth struct{ *speechtest.Synth }

func (s failingSynth) Speak(ctx context.Context, u speech.Utterance) error {
	s.Synth.Speak(ctx, u)
	return errors.New("audio device lost")
}

func TestPlaybackFailureSurfaces(t *testing.T) {
	synth := failingSynth{speechtest.NewSynth(voices...)}
	synth.AutoFinish = true
	f := newFixture(t, "personal-assistant", Devices{Synthesizer: synth}, say("Hello."))
	if err := f.s.Submit(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "playback error", func() bool { return len(f.rec.surfaced()) == 1 })
	if e := f.rec.surfaced()[0]; e.Kind != KindPlayback {
		t.Fatalf("kind = %v", e.Kind)
	}
	if f.s.State() != StateReady {
		t.Fatal("a playback failure must not disturb the session")
	}
}

func TestReport(t *testing.T) {
	f := newFixture(t, "personal-assistant", Devices{}, say("Hello."), say("Great!"))
	ctx := context.Background()
	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.s.Submit(ctx, "I am excited and ready"); err != nil {
		t.Fatal(err)
	}
	r := f.s.Report()
	if r.ScenarioID != "personal-assistant" || r.ScenarioTitle != "Personal Wellness Assistant" {
		t.Fatalf("report header = %+v", r)
	}
	if len(r.Turns) != 4 || r.Stats != f.s.Stats() {
		t.Fatalf("report = %+v", r)
	}
	r.Turns[0].Content = "changed"
	if f.s.Transcript()[0].Content == "changed" {
		t.Fatal("report must be a copy")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(lookup(t, "personal-assistant"), Devices{}, Options{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := New(&scenario.Scenario{ID: "empty"}, Devices{Endpoint: newEndpoint()}, Options{}); err == nil {
		t.Fatal("expected error without personas")
	}
}

func TestTextOnlySession(t *testing.T) {
	ep := newEndpoint(say("Hello."))
	rec := &recorder{}
	s, err := New(lookup(t, "personal-assistant"), Devices{Endpoint: ep}, Options{Hooks: rec.hooks()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	errs := rec.surfaced()
	if len(errs) != 1 || errs[0].Kind != KindUnsupported {
		t.Fatalf("surfaced = %v", errs)
	}
	if n := count(s.Transcript(), chat.RoleAssistant); n != 1 {
		t.Fatal("replies still arrive without speech output")
	}
}

func TestAttribute(t *testing.T) {
	tests := []struct {
		in, speaker, text string
	}{
		{"**Emma**: Let's go!", "Emma", "Let's go!"},
		{"**Ms. Thompson**:   Good point.", "Ms. Thompson", "Good point."},
		{"No marker here.", "", "No marker here."},
		{"Mid **Emma**: text", "", "Mid **Emma**: text"},
		{"**Emma** says hi", "", "**Emma** says hi"},
	}
	for _, tt := range tests {
		speaker, text := attribute(tt.in)
		if speaker != tt.speaker || text != tt.text {
			t.Errorf("attribute(%q) = %q, %q", tt.in, speaker, text)
		}
	}
}

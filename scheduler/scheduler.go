// Package scheduler paces autonomous persona turns in group conversations.
package scheduler

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Config struct {
	MinDelay        time.Duration `mapstructure:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	SkipProbability float64       `mapstructure:"skip_probability"`
}

func DefaultConfig() Config {
	return Config{
		MinDelay:        3 * time.Second,
		MaxDelay:        5 * time.Second,
		SkipProbability: 0.2,
	}
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithSeed(seed uint64) Option {
	return func(s *Scheduler) { s.rnd = rand.New(rand.NewPCG(seed, seed+1)) }
}

func WithLogger(l logrus.FieldLogger) Option { return func(s *Scheduler) { s.log = l } }

// Scheduler keeps at most one timer pending. When it fires while the group is
// active it calls trigger unless busy reports a reply in flight or the interval
// is randomly skipped, then arms the next timer.
type Scheduler struct {
	cfg     Config
	clock   Clock
	rnd     *rand.Rand
	log     logrus.FieldLogger
	trigger func()
	busy    func() bool

	mu     sync.Mutex
	active bool
	closed bool
	gen    uint64
	timer  Timer
}

func New(cfg Config, trigger func(), busy func() bool, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.SkipProbability < 0 || cfg.SkipProbability >= 1 {
		cfg.SkipProbability = def.SkipProbability
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	s := &Scheduler{
		cfg:     cfg,
		clock:   realClock{},
		trigger: trigger,
		busy:    busy,
	}
	for _, o := range opts {
		o(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	s.log = s.log.WithField("component", "scheduler")
	return s
}

// Resume activates the scheduler with a fresh timer.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.active {
		return
	}
	s.active = true
	s.arm()
}

// Pause stops the pending timer; nothing fires until Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
}

func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	s.closed = true
	return nil
}

func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// stop must be called with mu held.
func (s *Scheduler) stop() {
	s.active = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// arm must be called with mu held.
func (s *Scheduler) arm() {
	s.gen++
	gen := s.gen
	d := s.cfg.MinDelay
	if span := s.cfg.MaxDelay - s.cfg.MinDelay; span > 0 {
		d += time.Duration(s.rnd.Int64N(int64(span)))
	}
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	skip := s.rnd.Float64() < s.cfg.SkipProbability
	s.mu.Unlock()

	switch {
	case skip:
		s.log.Debug("interval skipped")
	case s.busy():
		s.log.Debug("reply in flight, not triggering")
	default:
		s.trigger()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && s.active {
		s.arm()
	}
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type InputState int

const (
	InputIdle InputState = iota
	InputListening
	InputFailed
	InputUnsupported
)

func (s InputState) String() string {
	switch s {
	case InputIdle:
		return "idle"
	case InputListening:
		return "listening"
	case InputFailed:
		return "error"
	default:
		return "unsupported"
	}
}

type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission-denied"
	KindNoSpeech         ErrorKind = "no-speech"
	KindNoMicrophone     ErrorKind = "no-microphone"
	KindNetwork          ErrorKind = "network"
	KindOther            ErrorKind = "other"
)

// InputError is what the controller surfaces for a failed capture.
type InputError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *InputError) Error() string { return e.Message }
func (e *InputError) Unwrap() error { return e.Err }

const (
	msgUnsupported   = "Speech recognition is not supported on this system."
	msgDeniedUpfront = "Microphone access denied. Please enable microphone permissions in your system settings."
	msgDenied        = "Microphone access denied. Please allow microphone permissions and try again."
	msgNoSpeech      = "No speech detected. Please try speaking again."
	msgNoMicrophone  = "No microphone found. Please check your microphone connection."
	msgNetwork       = "Network error occurred. Please check your internet connection."
)

func classify(err error) *InputError {
	var de *DeviceError
	if !errors.As(err, &de) {
		return &InputError{Kind: KindOther, Message: fmt.Sprintf("Speech recognition error: %v. Please try again.", err), Err: err}
	}
	switch de.Code {
	case CodeNotAllowed, CodeServiceNotAllowed:
		return &InputError{Kind: KindPermissionDenied, Message: msgDenied, Err: err}
	case CodeNoSpeech:
		return &InputError{Kind: KindNoSpeech, Message: msgNoSpeech, Err: err}
	case CodeAudioCapture:
		return &InputError{Kind: KindNoMicrophone, Message: msgNoMicrophone, Err: err}
	case CodeNetwork:
		return &InputError{Kind: KindNetwork, Message: msgNetwork, Err: err}
	}
	return &InputError{Kind: KindOther, Message: fmt.Sprintf("Speech recognition error: %s. Please try again.", de.Code), Err: err}
}

// InputHandlers receive capture outcomes. They run on the capture goroutine,
// outside the controller's lock.
type InputHandlers struct {
	OnResult func(transcript string)
	OnError  func(*InputError)
}

// Input drives a single-shot recognizer. Only one capture runs at a time; Start
// while capturing is rejected, never queued.
type Input struct {
	rec Recognizer
	mic Microphone
	cfg RecognizerConfig
	log logrus.FieldLogger

	mu       sync.Mutex
	state    InputState
	starting bool
	closed   bool
	perm     Permission
	lastErr  *InputError
	seq      uint64
	cancel   context.CancelFunc
	handlers InputHandlers
}

func NewInput(rec Recognizer, mic Microphone, locale string, log logrus.FieldLogger) *Input {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if locale == "" {
		locale = "en-US"
	}
	return &Input{
		rec:  rec,
		mic:  mic,
		cfg:  RecognizerConfig{Locale: locale},
		log:  log.WithField("component", "speech-input"),
		perm: PermissionUnknown,
	}
}

func (in *Input) SetHandlers(h InputHandlers) {
	in.mu.Lock()
	in.handlers = h
	in.mu.Unlock()
}

// CheckSupport records whether a recognizer exists and, if so, the current
// microphone permission.
func (in *Input) CheckSupport(ctx context.Context) {
	if in.rec == nil {
		in.mu.Lock()
		in.state = InputUnsupported
		in.lastErr = &InputError{Kind: KindOther, Message: msgUnsupported}
		in.mu.Unlock()
		return
	}
	perm := PermissionPrompt
	if in.mic != nil {
		p, err := in.mic.Permission(ctx)
		if err != nil {
			in.log.WithError(err).Debug("permission query unavailable, will request on first use")
		} else {
			perm = p
		}
	}
	in.mu.Lock()
	in.perm = perm
	in.mu.Unlock()
}

// Start begins a capture. It does nothing while listening or when recognition
// is unsupported.
func (in *Input) Start(ctx context.Context) {
	in.mu.Lock()
	if in.rec == nil {
		in.state = InputUnsupported
	}
	if in.closed || in.state == InputListening || in.state == InputUnsupported || in.starting {
		in.mu.Unlock()
		return
	}
	if in.perm == PermissionDenied {
		ie := &InputError{Kind: KindPermissionDenied, Message: msgDeniedUpfront}
		in.fail(ie)
		h := in.handlers
		in.mu.Unlock()
		in.report(h, ie)
		return
	}
	needAccess := in.perm != PermissionGranted
	in.starting = true
	in.mu.Unlock()

	if needAccess && in.mic != nil {
		if err := in.mic.Request(ctx); err != nil {
			in.mu.Lock()
			in.starting = false
			in.perm = PermissionDenied
			ie := &InputError{Kind: KindPermissionDenied, Message: msgDenied, Err: err}
			in.fail(ie)
			h := in.handlers
			in.mu.Unlock()
			in.report(h, ie)
			return
		}
	}

	in.mu.Lock()
	in.starting = false
	if needAccess {
		in.perm = PermissionGranted
	}
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.seq++
	id := in.seq
	cctx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	in.state = InputListening
	in.lastErr = nil
	in.mu.Unlock()

	in.log.WithField("locale", in.cfg.Locale).Debug("capture started")
	go in.capture(cctx, id)
}

func (in *Input) capture(ctx context.Context, id uint64) {
	alts, err := in.rec.Recognize(ctx, in.cfg)
	if err == nil && (len(alts) == 0 || alts[0].Transcript == "") {
		err = &DeviceError{Code: CodeNoSpeech}
	}

	in.mu.Lock()
	if in.seq != id {
		// stopped or superseded; nobody is waiting for this capture any more
		in.mu.Unlock()
		return
	}
	in.cancel = nil
	h := in.handlers
	if err != nil {
		ie := classify(err)
		if ie.Kind == KindPermissionDenied {
			in.perm = PermissionDenied
		}
		in.fail(ie)
		in.mu.Unlock()
		in.log.WithFields(logrus.Fields{"kind": ie.Kind}).WithError(err).Info("capture failed")
		in.report(h, ie)
		return
	}
	in.state = InputIdle
	in.mu.Unlock()

	if h.OnResult != nil {
		h.OnResult(alts[0].Transcript)
	}
}

// fail must be called with mu held.
func (in *Input) fail(ie *InputError) {
	in.state = InputFailed
	in.lastErr = ie
}

func (in *Input) report(h InputHandlers, ie *InputError) {
	if h.OnError != nil {
		h.OnError(ie)
	}
}

// Stop cancels an active capture. It is a no-op in any other state.
func (in *Input) Stop() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != InputListening {
		return
	}
	if in.cancel != nil {
		in.cancel()
		in.cancel = nil
	}
	in.seq++
	in.state = InputIdle
}

// ClearError dismisses a surfaced error so the next Start can proceed.
func (in *Input) ClearError() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == InputFailed {
		in.state = InputIdle
		in.lastErr = nil
	}
}

func (in *Input) State() InputState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (in *Input) IsListening() bool { return in.State() == InputListening }

func (in *Input) Permission() Permission {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.perm
}

// LastError is the error that put the controller in InputFailed or InputUnsupported.
func (in *Input) LastError() *InputError {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lastErr
}

// Close stops any capture and rejects later starts, including one still
// waiting on the permission prompt.
func (in *Input) Close() error {
	in.Stop()
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	return nil
}

package orchestrator

import (
	"errors"

	"github.com/happycapy/rehearsal/speech"
)

var (
	ErrBusy           = errors.New("a reply is already in flight")
	ErrEmpty          = errors.New("message is empty")
	ErrClosed         = errors.New("session is closed")
	ErrNothingToRetry = errors.New("no failed request to retry")
)

type Kind string

const (
	KindUnsupported     Kind = "unsupported"
	KindPermission      Kind = "permission"
	KindTransientDevice Kind = "transient-device"
	KindNetwork         Kind = "network"
	KindPlayback        Kind = "playback"
)

// Error is a failure surfaced to the user. Message is fit for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

const (
	msgChat        = "Failed to communicate with AI"
	msgEmptyReply  = "The AI returned an empty reply"
	msgPlayback    = "Failed to play audio. Please try again."
	msgNoSynthesis = "Text-to-speech is not available. Replies will be shown as text only."
)

func inputError(ie *speech.InputError) *Error {
	kind := KindTransientDevice
	if ie.Kind == speech.KindPermissionDenied {
		kind = KindPermission
	}
	return &Error{Kind: kind, Message: ie.Message, Err: ie}
}

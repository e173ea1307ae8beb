// Package speech wraps the two speech devices a rehearsal session drives: a
// single-shot recognizer for the user's voice and a synthesizer for persona replies.
// Devices are injected; the controllers own their state and lifecycle.
package speech

import (
	"context"
	"fmt"
)

// Recognizer captures one utterance per call. It returns the recognized
// alternatives best first, or a *DeviceError. Cancelling ctx aborts the capture.
type Recognizer interface {
	Recognize(ctx context.Context, cfg RecognizerConfig) ([]Alternative, error)
}

type RecognizerConfig struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

type Alternative struct {
	Transcript string
	Confidence float64
}

// Device error codes, as reported by recognition devices.
const (
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeNoSpeech          = "no-speech"
	CodeAudioCapture      = "audio-capture"
	CodeNetwork           = "network"
	CodeAborted           = "aborted"
)

type DeviceError struct {
	Code string
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech device %s: %v", e.Code, e.Err)
	}
	return "speech device " + e.Code
}

func (e *DeviceError) Unwrap() error { return e.Err }

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
	PermissionUnknown Permission = "unknown"
)

// Microphone reports and requests capture permission.
type Microphone interface {
	Permission(ctx context.Context) (Permission, error)
	// Request asks for access; a nil error means access was granted.
	Request(ctx context.Context) error
}

type Voice struct {
	Name string
	Lang string
}

type Utterance struct {
	Text   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
}

// Synthesizer is the process-wide speech output device. Speak blocks until the
// utterance ends (nil), fails (error) or ctx is cancelled. The voice catalog may
// be empty until VoicesChanged fires.
type Synthesizer interface {
	Voices() []Voice
	VoicesChanged() <-chan struct{}
	Speak(ctx context.Context, u Utterance) error
	Cancel()
}

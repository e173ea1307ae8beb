package devices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/happycapy/rehearsal/clients"
	"github.com/happycapy/rehearsal/speech"
)

var errNoClip = errors.New("no audio clip queued")

// RemoteRecognizer transcribes recorded clips with an ASR service. Each capture
// consumes the clip queued most recently by Queue.
type RemoteRecognizer struct {
	asr *clients.ASR
	log logrus.FieldLogger

	mu   sync.Mutex
	clip string
}

func NewRemoteRecognizer(asr *clients.ASR, log logrus.FieldLogger) *RemoteRecognizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RemoteRecognizer{asr: asr, log: log.WithField("component", "remote-recognizer")}
}

// Queue selects the clip the next capture will hear.
func (r *RemoteRecognizer) Queue(path string) {
	r.mu.Lock()
	r.clip = path
	r.mu.Unlock()
}

func (r *RemoteRecognizer) Recognize(ctx context.Context, cfg speech.RecognizerConfig) ([]speech.Alternative, error) {
	r.mu.Lock()
	path := r.clip
	r.clip = ""
	r.mu.Unlock()

	if path == "" {
		return nil, &speech.DeviceError{Code: speech.CodeAudioCapture, Err: errNoClip}
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, &speech.DeviceError{Code: speech.CodeNotAllowed, Err: err}
		}
		return nil, &speech.DeviceError{Code: speech.CodeAudioCapture, Err: err}
	}
	defer f.Close()

	tr, err := r.asr.Transcribe(ctx, filepath.Base(path), f)
	switch {
	case ctx.Err() != nil:
		return nil, &speech.DeviceError{Code: speech.CodeAborted, Err: ctx.Err()}
	case err != nil:
		return nil, &speech.DeviceError{Code: speech.CodeNetwork, Err: err}
	}

	text := tr.Text()
	r.log.WithFields(logrus.Fields{
		"clip":     filepath.Base(path),
		"language": tr.Language,
		"locale":   cfg.Locale,
	}).Debug("clip transcribed")
	if text == "" {
		return nil, &speech.DeviceError{Code: speech.CodeNoSpeech}
	}
	if lang := tr.Language; lang != "" && cfg.Locale != "" && !strings.HasPrefix(strings.ToLower(cfg.Locale), strings.ToLower(lang)) {
		r.log.WithField("language", lang).Warn("clip language differs from recognizer locale")
	}
	return []speech.Alternative{{Transcript: text, Confidence: 1}}, nil
}

// Microphone is a permission source with a fixed answer.
type Microphone struct {
	allowed bool
}

func NewMicrophone(allowed bool) *Microphone { return &Microphone{allowed: allowed} }

func (m *Microphone) Permission(context.Context) (speech.Permission, error) {
	if m.allowed {
		return speech.PermissionGranted, nil
	}
	return speech.PermissionDenied, nil
}

func (m *Microphone) Request(context.Context) error {
	if m.allowed {
		return nil
	}
	return &speech.DeviceError{Code: speech.CodeNotAllowed}
}

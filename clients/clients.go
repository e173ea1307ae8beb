// Package clients talks to the services a rehearsal session depends on: the
// hosted chat routes, Gemini, and a speech-to-text service.
package clients

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTP struct{ c *http.Client }

// NewHTTP returns a client whose requests give up after timeout; zero means 60s.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{c: &http.Client{Timeout: timeout}}
}

// StatusError is a non-2xx reply from a service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d %s: %s", e.Service, e.Code, http.StatusText(e.Code), e.Body)
}

func statusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Service: service, Code: resp.StatusCode, Body: string(body)}
}

package clients

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/scenario"
)

// ChatHTTP streams replies from the hosted chat routes: /api/chat for a single
// persona and /api/group-chat for groups.
type ChatHTTP struct {
	h   *HTTP
	url string
	log logrus.FieldLogger
}

func NewChatHTTP(h *HTTP, url string, log logrus.FieldLogger) *ChatHTTP {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ChatHTTP{h: h, url: strings.TrimRight(url, "/"), log: log.WithField("component", "chat-http")}
}

type personaBody struct {
	Messages []chat.Message    `json:"messages"`
	Persona  *scenario.Persona `json:"persona"`
	Scenario string            `json:"scenario"`
}

type groupBody struct {
	Messages []chat.Message     `json:"messages"`
	Scenario *scenario.Scenario `json:"scenario"`
	Theme    string             `json:"theme"`
	Data     *groupData         `json:"data,omitempty"`
}

type groupData struct {
	TriggerGroupResponse bool `json:"triggerGroupResponse"`
}

func (c *ChatHTTP) route(req chat.Request) (string, any, error) {
	s := req.Scenario
	if s == nil || len(s.Personas) == 0 {
		return "", nil, errors.New("chat: request has no scenario")
	}
	msgs := req.Messages
	if msgs == nil {
		msgs = []chat.Message{}
	}
	if !s.IsGroup() {
		return "/api/chat", personaBody{Messages: msgs, Persona: &s.Personas[0], Scenario: s.ID}, nil
	}
	theme := req.Theme
	if theme == "" {
		theme = s.Theme
	}
	body := groupBody{Messages: msgs, Scenario: s, Theme: theme}
	if req.Autonomous {
		body.Data = &groupData{TriggerGroupResponse: true}
	}
	return "/api/group-chat", body, nil
}

func (c *ChatHTTP) Stream(ctx context.Context, req chat.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		path, body, err := c.route(req)
		if err != nil {
			yield("", err)
			return
		}
		payload, err := json.Marshal(body)
		if err != nil {
			yield("", fmt.Errorf("chat encode: %w", err))
			return
		}
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(payload))
		if err != nil {
			yield("", err)
			return
		}
		hreq.Header.Set("Content-Type", "application/json")

		c.log.WithFields(logrus.Fields{
			"scenario": req.ScenarioID(),
			"messages": len(req.Messages),
			"route":    path,
		}).Debug("chat request")

		resp, err := c.h.c.Do(hreq)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			yield("", statusError("chat", resp))
			return
		}
		if resp.Header.Get("X-Vercel-AI-Data-Stream") != "" {
			readDataStream(resp.Body, yield)
			return
		}
		readText(resp.Body, yield)
	}
}

// readDataStream decodes the line protocol of AI SDK data streams. Text parts
// are `0:"..."`, errors `3:"..."`; other part types carry metadata only.
func readDataStream(r io.Reader, yield func(string, error) bool) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		kind, raw, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch kind {
		case "0":
			var tok string
			if err := json.Unmarshal([]byte(raw), &tok); err != nil {
				yield("", fmt.Errorf("chat decode: %w", err))
				return
			}
			if !yield(tok, nil) {
				return
			}
		case "3":
			var msg string
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				msg = raw
			}
			yield("", fmt.Errorf("chat stream: %s", msg))
			return
		}
	}
	if err := sc.Err(); err != nil {
		yield("", fmt.Errorf("chat read: %w", err))
	}
}

// readText yields the body as it arrives. A multi-byte rune split across two
// reads is held back until it is complete.
func readText(r io.Reader, yield func(string, error) bool) {
	buf := make([]byte, 4<<10)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(pending, buf[:n]...)
			cut := completePrefix(data)
			pending = append([]byte(nil), data[cut:]...)
			if cut > 0 && !yield(string(data[:cut]), nil) {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				yield(string(pending), nil)
			}
			return
		}
		if err != nil {
			yield("", fmt.Errorf("chat read: %w", err))
			return
		}
	}
}

// completePrefix is the length of b without a trailing partial rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

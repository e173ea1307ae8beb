package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/scenario"
)

func scenarioByID(t *testing.T, id string) *scenario.Scenario {
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

func TestChatHTTPDataStream(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("X-Vercel-AI-Data-Stream", "v1")
		io.WriteString(w, "f:{\"messageId\":\"m1\"}\n0:\"**Emma**: \"\n0:\"Let's go \\\"bowling\\\"!\"\ne:{}\nd:{}\n")
	}))
	defer srv.Close()

	c := NewChatHTTP(NewHTTP(0), srv.URL+"/", nil)
	req := chat.Request{
		Messages:   []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		Scenario:   scenarioByID(t, "friend-hangout"),
		Autonomous: true,
	}
	text, err := chat.Collect(c.Stream(context.Background(), req), nil)
	if err != nil {
		t.Fatal(err)
	}
	if text != `**Emma**: Let's go "bowling"!` {
		t.Fatalf("text = %q", text)
	}
	if path != "/api/group-chat" {
		t.Fatalf("path = %q", path)
	}
	if body["theme"] != "Weekend Plans & Social Media" {
		t.Fatalf("theme = %v", body["theme"])
	}
	data, _ := body["data"].(map[string]any)
	if data["triggerGroupResponse"] != true {
		t.Fatalf("autonomous flag missing: %v", body)
	}
}

func TestChatHTTPPersonaRoute(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, "Hello there.")
	}))
	defer srv.Close()

	c := NewChatHTTP(NewHTTP(0), srv.URL, nil)
	req := chat.Request{Scenario: scenarioByID(t, "personal-assistant")}
	text, err := chat.Collect(c.Stream(context.Background(), req), nil)
	if err != nil || text != "Hello there." {
		t.Fatalf("Collect = %q, %v", text, err)
	}
	if body["scenario"] != "personal-assistant" {
		t.Fatalf("scenario = %v", body["scenario"])
	}
	persona, _ := body["persona"].(map[string]any)
	if persona["name"] != "Dr. Riley" {
		t.Fatalf("persona = %v", body["persona"])
	}
	if msgs, ok := body["messages"].([]any); !ok || len(msgs) != 0 {
		t.Fatalf("messages = %v", body["messages"])
	}
}

func TestChatHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"quota"}`)
	}))
	defer srv.Close()

	c := NewChatHTTP(NewHTTP(0), srv.URL, nil)
	_, err := chat.Collect(c.Stream(context.Background(), chat.Request{Scenario: scenarioByID(t, "job-interview")}), nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 500 || !strings.Contains(se.Body, "quota") {
		t.Fatalf("err = %v", err)
	}
}

func TestChatHTTPStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vercel-AI-Data-Stream", "v1")
		io.WriteString(w, "0:\"partial\"\n3:\"model overloaded\"\n")
	}))
	defer srv.Close()

	c := NewChatHTTP(NewHTTP(0), srv.URL, nil)
	text, err := chat.Collect(c.Stream(context.Background(), chat.Request{Scenario: scenarioByID(t, "personal-assistant")}), nil)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") || text != "partial" {
		t.Fatalf("Collect = %q, %v", text, err)
	}
}

func TestChatHTTPNoScenario(t *testing.T) {
	c := NewChatHTTP(NewHTTP(0), "http://127.0.0.1:0", nil)
	if _, err := chat.Collect(c.Stream(context.Background(), chat.Request{}), nil); err == nil {
		t.Fatal("expected an error without a scenario")
	}
}

func TestASRTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		if hdr.Filename != "clip.wav" || string(b) != "RIFF" {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"language":"en","segments":[{"start":0,"end":1,"text":" I think "},{"start":1,"end":2,"text":"we should go."}]}`)
	}))
	defer srv.Close()

	tr, err := NewASR(NewHTTP(0), srv.URL).Transcribe(context.Background(), "clip.wav", strings.NewReader("RIFF"))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text() != "I think we should go." || tr.Language != "en" {
		t.Fatalf("transcription = %+v", tr)
	}
}

func TestASRStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewASR(NewHTTP(0), srv.URL).Transcribe(context.Background(), "a.wav", strings.NewReader(""))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
}

func TestGeminiRequest(t *testing.T) {
	req := chat.Request{
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "hi"},
			{Role: chat.RoleAssistant, Content: "**Mom**: hello"},
		},
		Scenario:   scenarioByID(t, "family-dinner"),
		Autonomous: true,
	}
	contents, cfg := geminiRequest(req)
	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	if contents[1].Role != string(genai.RoleModel) || contents[2].Role != string(genai.RoleUser) {
		t.Fatalf("roles = %s, %s", contents[1].Role, contents[2].Role)
	}
	if contents[2].Parts[0].Text != chat.ContinueInstruction {
		t.Fatal("autonomous request must end with the continue instruction")
	}
	if cfg.MaxOutputTokens != chat.GroupMaxTokens || *cfg.Temperature != chat.GroupTemperature {
		t.Fatalf("sampling = %v/%v", *cfg.Temperature, cfg.MaxOutputTokens)
	}
	if cfg.SystemInstruction == nil || !strings.Contains(cfg.SystemInstruction.Parts[0].Text, "GROUP MEMBERS") {
		t.Fatal("group system prompt missing")
	}
}

func TestNewGeminiNeedsKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "", "", nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestReadTextKeepsRunesWhole(t *testing.T) {
	const want = "Très bien, 你好 👋!"
	var toks []string
	readText(iotest.OneByteReader(strings.NewReader(want)), func(tok string, err error) bool {
		if err != nil {
			t.Fatal(err)
		}
		toks = append(toks, tok)
		return true
	})
	for _, tok := range toks {
		if !utf8.ValidString(tok) {
			t.Fatalf("token %q splits a rune", tok)
		}
	}
	if got := strings.Join(toks, ""); got != want {
		t.Fatalf("text = %q", got)
	}
}

func TestReadTextFlushesTruncatedRune(t *testing.T) {
	var got string
	readText(strings.NewReader("ok\xe4\xbd"), func(tok string, err error) bool {
		got += tok
		return err == nil
	})
	if got != "ok\xe4\xbd" {
		t.Fatalf("text = %q", got)
	}
}

package clients

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/happycapy/rehearsal/chat"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini answers chat requests directly, building the same system prompts the
// hosted routes use.
type Gemini struct {
	client *genai.Client
	model  string
	log    logrus.FieldLogger
}

func NewGemini(ctx context.Context, apiKey, model string, log logrus.FieldLogger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, log: log.WithField("component", "gemini")}, nil
}

func (g *Gemini) Stream(ctx context.Context, req chat.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents, cfg := geminiRequest(req)
		g.log.WithFields(logrus.Fields{
			"scenario": req.ScenarioID(),
			"messages": len(contents),
		}).Debug("gemini request")

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if t := resp.Text(); t != "" && !yield(t, nil) {
				return
			}
		}
	}
}

func geminiRequest(req chat.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if req.Autonomous || len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(chat.ContinueInstruction, genai.RoleUser))
	}

	temp, limit := chat.Sampling(req)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: limit,
	}
	if sys := chat.SystemPrompt(req); sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	return contents, cfg
}

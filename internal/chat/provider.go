// Package chat implements the health assistant: conversation
// persistence plus a completion call to an OpenAI-compatible backend.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/supahealth/supahealth/internal/model"
)

// Provider produces an assistant reply for a conversation transcript.
type Provider interface {
	Complete(ctx context.Context, messages []*model.Message) (string, error)
}

const systemPrompt = "You are a helpful health assistant. Answer questions " +
	"about the user's tracked health data plainly and concisely. Do not " +
	"give medical diagnoses; suggest seeing a professional for anything " +
	"that needs one."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client *resty.Client
	model  string
}

// NewOpenAIProvider builds a provider against baseURL (e.g.
// https://api.openai.com/v1). timeout bounds each attempt; one retry is
// made on transient failure.
func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration) *OpenAIProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &OpenAIProvider{client: client, model: model}
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []*model.Message) (string, error) {
	req := completionRequest{
		Model:    p.model,
		Messages: make([]chatMessage, 0, len(messages)+1),
	}
	req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var out completionResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return "", errors.Wrapf(model.ErrUpstream, "completion request: %v", err)
	}
	if resp.IsError() {
		detail := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			detail = fmt.Sprintf("%s: %s", resp.Status(), out.Error.Message)
		}
		return "", errors.Wrapf(model.ErrUpstream, "completion request: %s", detail)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", errors.Wrap(model.ErrUpstream, "completion response had no content")
	}
	return out.Choices[0].Message.Content, nil
}

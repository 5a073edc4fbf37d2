// Package relay forwards requests to the third-party services the portal
// fronts: an OpenAI-compatible completion API for the chat widget and an
// Airtable-style table for lead submissions.  Neither relay retries.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/iliyamo/utility-audit-portal/internal/config"
)

var (
	ErrNotConfigured = errors.New("relay not configured")
	ErrEmptyMessage  = errors.New("message is required")
)

const chatSystemPrompt = "You are the assistant on a resource-monitoring company's website. " +
	"Answer questions about electricity and water usage audits, savings and monitoring plans briefly."

const defaultRelayTimeout = 30 * time.Second

// ChatRelay is stateless: every call sends exactly one user message and no
// conversation history is kept.
type ChatRelay struct {
	client *openai.Client
	model  string
}

func NewChatRelay(cfg config.ChatConfig) *ChatRelay {
	if cfg.APIKey == "" {
		return &ChatRelay{model: cfg.Model}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: defaultRelayTimeout}
	return &ChatRelay{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

// Complete returns the completion text for message.
func (r *ChatRelay) Complete(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if r.client == nil {
		return "", ErrNotConfigured
	}
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

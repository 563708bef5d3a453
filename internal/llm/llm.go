// Package llm implements the chat-completion client used by the
// conversational personas.
//
// It speaks the OpenAI-compatible Chat Completions API; the default
// endpoint is Groq's.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/fault"
	"github.com/nadzzz/civicbot/internal/message"
)

// maxErrorBody bounds how much of a failed response is embedded in the reply.
const maxErrorBody = 64 << 10

// Client sends conversations to a chat-completion endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// New creates a new client from config.
func New(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the system prompt, the prior turns and the new user message,
// and returns the generated reply.
//
// A non-200 response is reported as a fault.KindModelAPI error carrying the
// status and body; a network failure as fault.KindTransport.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []message.Turn, userMessage string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    buildMessages(systemPrompt, history, userMessage),
		Temperature: c.temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fault.Newf(fault.KindTransport, "marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fault.Newf(fault.KindTransport, "creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fault.Newf(fault.KindTransport, "chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Warn("chat completion failed", "status", resp.StatusCode, "model", c.model)
		return "", fault.ModelAPI(resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fault.Newf(fault.KindTransport, "reading chat response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fault.Newf(fault.KindTransport, "decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fault.ModelAPI(resp.StatusCode, string(respBody))
	}

	content := chatResp.Choices[0].Message.Content
	slog.Debug("chat completion complete", "model", c.model, "messages", len(reqBody.Messages), "reply_length", len(content))
	return content, nil
}

// buildMessages assembles the outbound message list: one system message,
// the history in order, then the new user message. Roles are normalised but
// alternation is not checked.
func buildMessages(systemPrompt string, history []message.Turn, userMessage string) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: message.RoleSystem, Content: systemPrompt})
	for _, t := range history {
		msgs = append(msgs, chatMessage{Role: message.NormalizeRole(t.Role), Content: t.Content})
	}
	msgs = append(msgs, chatMessage{Role: message.RoleUser, Content: userMessage})
	return msgs
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    message.Role `json:"role"`
	Content string       `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

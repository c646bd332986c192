package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Role identifies the author of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyPrompt is returned when the conversation holds no user message.
var ErrEmptyPrompt = errors.New("conversation has no user message")

const (
	maxMessages      = 40
	maxContentLength = 4000

	defaultTimeout = 20 * time.Second
)

// systemPrompt steers the upstream model toward the platform's subject area.
const systemPrompt = "You are a cybersecurity tutor on a learning platform. " +
	"Explain concepts clearly, favor defensive framing, and never provide " +
	"instructions for attacking systems the user does not own."

// fallbackReply is served when the upstream model is unreachable so the chat
// panel always has something to render.
const fallbackReply = "The assistant is temporarily unavailable. Please try again in a moment."

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's answer. Fallback is set when the canned reply was
// served instead of a model response.
type Reply struct {
	Content  string `json:"content"`
	Fallback bool   `json:"fallback"`
}

// Service proxies chat conversations to an OpenAI-compatible completion API.
type Service struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// Option configures the Service during construction.
type Option func(*Service)

// WithModel overrides the upstream model name.
func WithModel(model string) Option {
	return func(s *Service) {
		s.model = model
	}
}

// WithHTTPClient overrides the HTTP client used for upstream calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// NewService constructs a Service targeting the given completion endpoint.
func NewService(baseURL, apiKey string, opts ...Option) *Service {
	s := &Service{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   "mistralai/Mistral-7B-Instruct-v0.2",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends the conversation upstream and returns the model's answer. An
// unreachable or failing upstream yields the fallback reply rather than an
// error, so the caller can always render a response.
func (s *Service) Chat(ctx context.Context, history []Message) (Reply, error) {
	messages, err := prepare(history)
	if err != nil {
		return Reply{}, err
	}

	body, err := json.Marshal(completionRequest{Model: s.model, Messages: messages})
	if err != nil {
		return Reply{}, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Reply{Content: fallbackReply, Fallback: true}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reply{Content: fallbackReply, Fallback: true}, nil
	}

	var payload completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Reply{Content: fallbackReply, Fallback: true}, nil
	}

	if len(payload.Choices) == 0 || strings.TrimSpace(payload.Choices[0].Message.Content) == "" {
		return Reply{Content: fallbackReply, Fallback: true}, nil
	}

	return Reply{Content: strings.TrimSpace(payload.Choices[0].Message.Content)}, nil
}

// prepare validates the history, truncates oversized turns, and prepends the
// system prompt.
func prepare(history []Message) ([]Message, error) {
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	hasUserTurn := false
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if len(content) > maxContentLength {
			content = truncateAtRune(content, maxContentLength)
		}
		role := msg.Role
		if role != RoleUser && role != RoleAssistant {
			role = RoleUser
		}
		if role == RoleUser {
			hasUserTurn = true
		}
		messages = append(messages, Message{Role: role, Content: content})
	}

	if !hasUserTurn {
		return nil, ErrEmptyPrompt
	}
	return messages, nil
}

// truncateAtRune cuts s to at most limit bytes without splitting a UTF-8 rune.
func truncateAtRune(s string, limit int) string {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

package dialog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-callbridge/internal/httpc"
)

const providerOpenAI = "openai"

// Client generates utterances via an OpenAI-compatible chat-completions API.
type Client struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewClient creates a new generation client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "dialog.openai"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// OpeningLine generates the agent's first utterance for the call.
func (c *Client) OpeningLine(ctx context.Context, info CallInfo) (string, error) {
	system := fmt.Sprintf(
		"You are an AI phone assistant making a call to book an appointment.\n"+
			"Generate the opening message for a call to %s.\n"+
			"Be polite, professional, and clearly state you're an AI calling on behalf of %s.\n"+
			"Keep it concise (2-3 sentences max). Speak naturally as if on a phone call.",
		info.ProviderName, info.UserName)

	user := fmt.Sprintf(
		"Generate opening for:\nService: %s\nPurpose: %s\nDetails: %s\nTime preference: %s",
		info.Service,
		purposeText(info.Purpose),
		orDefault(info.Details, "None"),
		orDefault(info.TimePreference, "Flexible"))

	return c.complete(ctx, system, nil, user)
}

// Reply generates the agent's next utterance given the full turn history.
func (c *Client) Reply(ctx context.Context, info CallInfo, turns []Turn) (string, error) {
	system := fmt.Sprintf(
		"You are an AI phone assistant in a live phone conversation to book an appointment at %s.\n"+
			"Based on what the receptionist/staff said, generate an appropriate reply.\n"+
			"If they offered a time slot, confirm it and ask for confirmation details.\n"+
			"If they asked a question, answer it based on the context.\n"+
			"If they can't help, thank them politely.\n"+
			"Keep responses concise (1-2 sentences). Be natural and conversational.",
		info.ProviderName)

	last := "Hello?"
	if len(turns) > 0 {
		last = turns[len(turns)-1].Text
	}

	user := fmt.Sprintf(
		"The receptionist said: %q\n\nService requested: %s\nTime preference: %s\n"+
			"Additional context: %s\n\nWhat should you say next?",
		last,
		info.Service,
		orDefault(info.TimePreference, "Flexible"),
		orDefault(info.Details, "None"))

	return c.complete(ctx, system, turns, user)
}

// chatMessage is one entry in the chat-completions request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// complete performs one chat-completions round trip. The most recent turns
// (bounded by HistoryWindow) are sent between the system and user prompts.
func (c *Client) complete(ctx context.Context, system string, turns []Turn, user string) (string, error) {
	start := time.Now()

	if w := c.config.HistoryWindow; len(turns) > w {
		turns = turns[len(turns)-w:]
	}

	messages := make([]chatMessage, 0, len(turns)+2)
	messages = append(messages, chatMessage{Role: "system", Content: system})
	for _, t := range turns {
		messages = append(messages, chatMessage{Role: apiRole(t.Role), Content: t.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload := map[string]interface{}{
		"model":       c.config.Model,
		"messages":    messages,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrNoChoices
	}

	text := strings.TrimSpace(result.Choices[0].Message.Content)

	c.logger.Debug("generated utterance",
		"turns", len(turns),
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
		"model", c.config.Model,
	)

	return text, nil
}

// Health checks API connectivity.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerOpenAI,
	}
}

// apiRole maps conversation roles onto chat-completions roles.
func apiRole(r Role) string {
	if r == RoleAgent {
		return "assistant"
	}
	return "user"
}

// purposeText renders the booking intent for the prompt.
func purposeText(purpose string) string {
	switch purpose {
	case "new_appointment":
		return "Book new appointment"
	case "reschedule":
		return "Reschedule"
	default:
		return purpose
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Package genai provides the OpenAI-backed response generator for RecruitPipe.
//
// The generator is treated as an opaque text boundary: it receives an inbound
// message plus the thread's state snapshot and returns a structured reply
// (response text, candidate next stage, extracted fields, escalation flag).
// Callers must degrade gracefully when generation fails.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/recruitpipe/recruitpipe/internal/models"
)

// GenerateRequest is the input to the response generator.
type GenerateRequest struct {
	Message string
	Channel models.Channel
	State   *models.ConversationState
	Context map[string]string
}

// ClientInterface defines the generator operations used by the rest of the
// system. Tests substitute a mock implementation.
type ClientInterface interface {
	// GenerateReply produces a structured reply for an inbound recruiter message.
	GenerateReply(ctx context.Context, req GenerateRequest) (*models.GeneratedReply, error)

	// GenerateText produces plain text from a system/user prompt pair.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model used for generation.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	oa    openai.Client
	model string
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("genai.NewClient: client configured", "model", cfg.Model)
	return &Client{
		oa:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model: cfg.Model,
	}, nil
}

const replySystemPrompt = `You are a candidate's assistant handling recruiter outreach.
Reply professionally and concisely on the candidate's behalf.

Return ONLY a JSON object with these keys:
  "response": string, the reply to send,
  "next_stage": one of "initial_contact", "information_gathering", "screening", "negotiation", "scheduling", "declined",
  "extracted_info": object with optional string keys "company", "position", "recruiter_name", "salary_range", "work_arrangement",
  "requires_escalation": bool, true when a human must take over (offers, legal terms, anything unusual),
  "escalation_reason": string, empty unless requires_escalation is true.`

// GenerateReply asks the model for a structured reply to an inbound message.
func (c *Client) GenerateReply(ctx context.Context, req GenerateRequest) (*models.GeneratedReply, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.oa.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(replySystemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("genai.GenerateReply: completion failed", "error", err, "channel", req.Channel)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	reply, err := ParseReply(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Error("genai.GenerateReply: reply parse failed", "error", err)
		return nil, err
	}
	slog.Debug("genai.GenerateReply: reply generated",
		"channel", req.Channel, "nextStage", reply.NextStage, "escalation", reply.RequiresEscalation)
	return reply, nil
}

// GenerateText produces plain text from a system/user prompt pair.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.oa.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("genai.GenerateText: completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildUserPrompt serializes the inbound message plus state snapshot into the
// generator's user prompt.
func buildUserPrompt(req GenerateRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\n", req.Channel)
	if req.State != nil {
		snapshot := *req.State
		// History can be long; the snapshot carries only the last few turns.
		if n := len(snapshot.ConversationHistory); n > 6 {
			snapshot.ConversationHistory = snapshot.ConversationHistory[n-6:]
		}
		stateJSON, err := json.Marshal(snapshot)
		if err != nil {
			return "", fmt.Errorf("marshal state snapshot: %w", err)
		}
		fmt.Fprintf(&b, "Current conversation state: %s\n", stateJSON)
	}
	for k, v := range req.Context {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "\nInbound message:\n%s", req.Message)
	return b.String(), nil
}

// ParseReply parses the model's JSON output into a GeneratedReply. It
// tolerates surrounding prose or markdown fences by extracting the outermost
// JSON object. An unknown next_stage is dropped rather than propagated.
func ParseReply(content string) (*models.GeneratedReply, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in generator output")
	}
	var reply models.GeneratedReply
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("unmarshal generator output: %w", err)
	}
	if reply.NextStage != "" && !models.IsValidStage(reply.NextStage) {
		slog.Warn("genai.ParseReply: generator returned unknown stage, ignoring", "stage", reply.NextStage)
		reply.NextStage = ""
	}
	return &reply, nil
}

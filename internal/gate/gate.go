// Package gate implements the two fail-closed classifiers that keep the bot
// from answering when it shouldn't: should-answer for inbound messages and
// is-good-answer for unsolicited replies. Both delegate to a general-purpose
// chat model; any failure means "don't act", never an error for the caller.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"askbridge/internal/metrics"
)

// ChatModel is the slice of the OpenAI-compatible client the gate needs.
// *openai.Client satisfies it.
type ChatModel interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Gate runs the classifiers.
type Gate struct {
	model     ChatModel
	modelName string
	prompts   *PromptSet
	logger    *slog.Logger
}

// Config configures a Gate.
type Config struct {
	Model     ChatModel
	ModelName string
	Prompts   *PromptSet // nil means DefaultPrompts
	Logger    *slog.Logger
}

// New creates a Gate.
func New(cfg Config) *Gate {
	if cfg.ModelName == "" {
		cfg.ModelName = openai.GPT4oMini
	}
	if cfg.Prompts == nil {
		cfg.Prompts = DefaultPrompts()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		model:     cfg.Model,
		modelName: cfg.ModelName,
		prompts:   cfg.Prompts,
		logger:    cfg.Logger,
	}
}

// Decision is the should-answer verdict with the model's stated reasoning.
type Decision struct {
	ShouldAnswer bool   `json:"should_answer"`
	Reasoning    string `json:"reasoning"`
}

// ShouldAnswer decides whether the bot should respond to a message at all.
// Fails closed: any model or parse failure yields false.
func (g *Gate) ShouldAnswer(ctx context.Context, message string, sources []string) Decision {
	input := fmt.Sprintf("Message:\n%s\n\nConfigured knowledge sources: %s",
		message, strings.Join(sources, ", "))

	raw, err := g.complete(ctx, g.prompts.ShouldAnswer, input)
	if err != nil {
		metrics.GateSuppressed.Inc()
		g.logger.Warn("should-answer classifier failed, suppressing", "error", err)
		return Decision{ShouldAnswer: false, Reasoning: "classifier unavailable"}
	}

	var d Decision
	if err := json.Unmarshal(stripFences(raw), &d); err != nil {
		metrics.GateSuppressed.Inc()
		g.logger.Warn("should-answer output unparsable, suppressing",
			"error", err, "output", truncate(raw, 200))
		return Decision{ShouldAnswer: false, Reasoning: "classifier output unparsable"}
	}
	if !d.ShouldAnswer {
		metrics.GateSuppressed.Inc()
	}
	return d
}

// IsGoodAnswer decides whether an answer is worth posting unsolicited.
// Fails closed: any failure yields false.
func (g *Gate) IsGoodAnswer(ctx context.Context, question, answer string) bool {
	input := fmt.Sprintf("Question:\n%s\n\nAnswer:\n%s", question, answer)

	raw, err := g.complete(ctx, g.prompts.IsGoodAnswer, input)
	if err != nil {
		g.logger.Warn("is-good-answer classifier failed, rejecting", "error", err)
		return false
	}

	var verdict struct {
		IsGoodAnswer bool `json:"is_good_answer"`
	}
	if err := json.Unmarshal(stripFences(raw), &verdict); err != nil {
		g.logger.Warn("is-good-answer output unparsable, rejecting",
			"error", err, "output", truncate(raw, 200))
		return false
	}
	return verdict.IsGoodAnswer
}

// complete runs a single request/response classification. No retries: a
// classifier failure simply means the conservative branch wins.
func (g *Gate) complete(ctx context.Context, instructions, input string) (string, error) {
	resp, err := g.model.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.modelName,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence the model may wrap JSON in.
func stripFences(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

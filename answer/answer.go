// Package answer asks the question-answering model about the aggregated
// content.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"docqa/core"
	"docqa/logging"
)

const serviceName = "answer service"

var (
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("answer: question is empty")

	// ErrEmptyResponse indicates the model returned no choices or no text.
	ErrEmptyResponse = errors.New("answer: empty response from model")
)

// SystemPrompt instructs the model to stay within the supplied content.
const SystemPrompt = `You are an intelligent document analysis assistant. Your task is to provide accurate, detailed answers based ONLY on the content provided to you.

IMPORTANT INSTRUCTIONS:
- Read the content carefully and thoroughly
- Answer questions directly and specifically based on what you find
- If you see numbers, dates, symbols (like ≥, ≤, etc.), or specific text, mention them explicitly
- Be precise and quote relevant parts when answering
- If information exists in the content, provide it confidently
- If the answer is not present in the content, say so clearly instead of guessing
- Pay special attention to numerical values, ranges, and mathematical symbols`

// BuildUserPrompt frames the context and the question.
func BuildUserPrompt(contentType, content, question string) string {
	if contentType == "" {
		contentType = "document"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the %s content to analyze:\n\n", contentType)
	b.WriteString("=== DOCUMENT CONTENT ===\n")
	b.WriteString(content)
	b.WriteString("\n=== END CONTENT ===\n\n")
	fmt.Fprintf(&b, "User Question: %s\n\n", question)
	b.WriteString("Please provide a thorough, accurate answer based on the content above.")
	return b.String()
}

// Request is one question about a context bundle.
type Request struct {
	Question    string
	Context     string
	ContentType string
}

// Answer is the model's reply.
type Answer struct {
	Text             string        `json:"answer"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Duration         time.Duration `json:"-"`
}

// Service answers questions. Implemented by Responder; tests substitute
// stubs.
type Service interface {
	Answer(ctx context.Context, req Request) (*Answer, error)
}

// ChatClient is the subset of *openai.Client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the completion parameters.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// DefaultConfig returns gpt-4o-mini with 1000 tokens at temperature 0.1.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   1000,
		Temperature: 0.1,
		Timeout:     30 * time.Second,
	}
}

// ConfigFromCore maps the runtime configuration onto Config.
func ConfigFromCore(cfg *core.Config) Config {
	c := DefaultConfig()
	if cfg.AnswerModel != "" {
		c.Model = cfg.AnswerModel
	}
	if cfg.AnswerMaxTokens > 0 {
		c.MaxTokens = cfg.AnswerMaxTokens
	}
	c.Temperature = cfg.AnswerTemperature
	if cfg.ExternalTimeout > 0 {
		c.Timeout = cfg.ExternalTimeout
	}
	return c
}

// Responder calls a chat completion model.
type Responder struct {
	client ChatClient
	config Config
	logger *logging.Logger
}

// NewResponder returns a Responder. Zero config fields take defaults.
func NewResponder(client ChatClient, config Config, logger *logging.Logger) *Responder {
	def := DefaultConfig()
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Responder{client: client, config: config, logger: logger.Named("answer")}
}

// Answer sends the question with its context. A blank context yields a
// ContextEmpty error without calling the model.
func (r *Responder) Answer(ctx context.Context, req Request) (*Answer, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, core.ErrContextEmpty()
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(req.ContentType, req.Context, question)},
		},
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
	})
	if err != nil {
		r.logger.Warn("completion failed", zap.String("model", r.config.Model), zap.Error(err))
		return nil, core.ErrService(serviceName, r.config.Model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, core.ErrService(serviceName, r.config.Model, ErrEmptyResponse)
	}

	out := &Answer{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Duration:         time.Since(start),
	}
	r.logger.Info("question answered",
		zap.String("model", r.config.Model),
		zap.Int("context_length", len(req.Context)),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
		zap.Duration("duration", out.Duration))
	return out, nil
}

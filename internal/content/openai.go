package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mlevan/autopost/internal/model"
)

// chatClient is the slice of the OpenAI client the generators use; tests
// substitute a fake.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator asks a chat model for a short post on the channel's topic.
type OpenAIGenerator struct {
	client chatClient
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{client: openai.NewClient(apiKey), model: model}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, ch model.Channel, _ time.Time) (string, error) {
	lang := ch.LanguageCode
	if lang == "" {
		lang = "en"
	}
	prompt := fmt.Sprintf(
		"You are a Telegram content assistant. Generate a concise, engaging post for the channel. "+
			"Topic: %s. Language code: %s. Focus on value and include a call-to-action if relevant.",
		ch.Topic, lang,
	)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   160,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
	})
	if err != nil {
		return "", &GenerationError{Strategy: "openai", Reason: "chat completion failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Strategy: "openai", Reason: "no choices returned"}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &GenerationError{Strategy: "openai", Reason: "empty completion"}
	}
	return text, nil
}

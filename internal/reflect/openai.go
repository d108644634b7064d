package reflect

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are an AI assistant that helps users reflect on their journal entries. " +
	"Provide insightful and supportive reflections based on the user's input. " +
	"Format your response in HTML, using appropriate tags for paragraphs, emphasis, and structure. " +
	"Use bullet points for key insights and bold or italicize important keywords."

// Compile-time interface check
var _ Generator = (*OpenAI)(nil)

// ChatService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements reflection generation against any OpenAI-compatible
// chat completion endpoint (the default deployment points it at Groq).
type OpenAI struct {
	chat  ChatService
	model string
}

// NewOpenAI creates a reflection generator. baseURL may be empty for the
// default OpenAI endpoint, or an OpenAI-compatible endpoint such as Groq's.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{
		chat:  client.Chat.Completions,
		model: model,
	}
}

// Generate produces an HTML reflection for the journal entry content.
func (o *OpenAI) Generate(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf("Please provide a thoughtful reflection on this journal entry, "+
		"formatted in HTML with bullet points and emphasized keywords: %q", content)

	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(o.model),
		Temperature: openai.F(0.5),
		MaxTokens:   openai.F(int64(500)),
	})
	if err != nil {
		return "", fmt.Errorf("reflection generation failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "<p>Unable to generate reflection.</p>", nil
	}

	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the chat model name.
func (o *OpenAI) ModelName() string {
	return o.model
}

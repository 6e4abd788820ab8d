package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// Temperature 0 is omitted from the request body, which leaves the API default of 1.
const nearZeroTemperature = 1e-6

type IVision interface {
	AnalyzeImage(ctx context.Context, base64Image, mimeType, instruction, prompt string) (string, error)
	Close() error
}

type visionService struct {
	client *openai.Client
	model  string
}

func NewVision() (IVision, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}

	model := os.Getenv("OPENAI_VISION_MODEL")
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	return &visionService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (v *visionService) AnalyzeImage(ctx context.Context, base64Image, mimeType, instruction, prompt string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	messages := []openai.ChatCompletionMessage{}
	if instruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64Image),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		},
	})

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       v.model,
		Messages:    messages,
		Temperature: nearZeroTemperature,
		MaxTokens:   50,
	})
	if err != nil {
		return "", fmt.Errorf("vision completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI API")
	}

	return resp.Choices[0].Message.Content, nil
}

func (v *visionService) Close() error {
	return nil
}

package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type IGemini interface {
	AnalyzeImage(ctx context.Context, base64Image, mimeType, instruction, prompt string) (string, error)
	Close() error
}

type geminiClient struct {
	apiKey    string
	modelName string
	client    *genai.Client
}

func NewGeminiClient() (IGemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) AnalyzeImage(ctx context.Context, base64Image, mimeType, instruction, prompt string) (string, error) {
	imgData, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return "", errors.New("invalid base64 image data")
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)
	if instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	}

	// ImageData takes the subtype only, e.g. "jpeg".
	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" {
		format = "jpeg"
	}

	img := genai.ImageData(format, imgData)
	res, err := model.GenerateContent(ctx, genai.Text(prompt), img)
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini API")
	}

	return sb.String(), nil
}

func (g *geminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

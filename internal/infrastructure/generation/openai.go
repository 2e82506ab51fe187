package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

const analyzerSystemPrompt = `You are a landscape designer. Given a photo of a yard,
describe its current layout in one short paragraph and list the plants and
materials a redesign in the requested style would need. Respond with JSON:
{"summary": "...", "items": [{"name": "...", "category": "...", "size": "...", "quantity": 1}]}.
Categories: tree, shrub, grass, flower, paver, gravel, stone, mulch, edging, retaining wall.`

// OpenAIAnalyzer describes the uploaded yard photo with a vision model. The
// structured item list seeds the cost estimate; the summary enriches the
// generation prompt.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

func NewOpenAIAnalyzer(apiKey, model string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, yardImage, styleID, prompt string) (*ports.YardAnalysis, error) {
	userText := fmt.Sprintf("Desired style: %s.", styleID)
	if prompt != "" {
		userText += " Additional wishes: " + prompt
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analyzerSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: userText,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    yardImage,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: yard analysis: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: yard analysis returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var analysis ports.YardAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("openai: decode yard analysis: %w", err)
	}
	return &analysis, nil
}

package sentiment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// OpenAIAnalyzer sends the window to an OpenAI compatible chat completions API.
type OpenAIAnalyzer struct {
	client openai.Client
	model  string
}

// NewOpenAIAnalyzer creates an analyzer. baseURL may be empty.
func NewOpenAIAnalyzer(apiKey, baseURL, model string) (*OpenAIAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", ErrAnalyzerUnavailable)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIAnalyzer{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, participant string, turns []chat.Turn) (monitor.AnalysisResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(renderUserPrompt(participant, FormatConversation(turns))),
		},
		Temperature: openai.Float(0),
	}

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return monitor.AnalysisResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return monitor.AnalysisResult{}, fmt.Errorf("%w: no choices in response", ErrMalformedResult)
	}

	result, err := ParseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return monitor.AnalysisResult{}, err
	}
	log.Printf("[sentiment] openai model=%s analyzed %d messages for %s in %dms: %s",
		a.model, len(turns), participant, time.Since(start).Milliseconds(), result.Sentiment)
	return result, nil
}

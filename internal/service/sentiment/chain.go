package sentiment

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// ChainAnalyzer 通过 eino 链调用大模型完成情绪分析。
type ChainAnalyzer struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
}

// NewChainAnalyzer 编译 prompt -> chat model 链。
func NewChainAnalyzer(ctx context.Context, chatModel model.ChatModel) (*ChainAnalyzer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", ErrAnalyzerUnavailable)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPromptTemplate),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment chain: %w", err)
	}

	return &ChainAnalyzer{classifier: runnable}, nil
}

// Analyze 运行链并解析模型返回的 JSON。
func (a *ChainAnalyzer) Analyze(ctx context.Context, participant string, turns []chat.Turn) (monitor.AnalysisResult, error) {
	input := map[string]any{
		"participant":  participant,
		"conversation": FormatConversation(turns),
	}

	msg, err := a.classifier.Invoke(ctx, input)
	if err != nil {
		return monitor.AnalysisResult{}, fmt.Errorf("sentiment chain invoke: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return monitor.AnalysisResult{}, fmt.Errorf("%w: empty reply", ErrMalformedResult)
	}

	result, err := ParseResult(msg.Content)
	if err != nil {
		return monitor.AnalysisResult{}, err
	}
	log.Printf("[sentiment] chain analyzed %d messages for %s: %s", len(turns), participant, result.Sentiment)
	return result, nil
}

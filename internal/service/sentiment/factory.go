package sentiment

import (
	"context"
	"fmt"

	"github.com/zhouzirui/chat-monitor/backend/internal/config"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// Analyzer matches the session controller's analyzer contract.
type Analyzer interface {
	Analyze(ctx context.Context, participant string, turns []chat.Turn) (monitor.AnalysisResult, error)
}

// New builds the analyzer selected by cfg.Analyzer.Provider.
func New(ctx context.Context, cfg *config.Config) (Analyzer, error) {
	switch cfg.Analyzer.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChainAnalyzer(ctx, chatModel)
	case config.ProviderOpenAI:
		return NewOpenAIAnalyzer(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	case config.ProviderHeuristic, "":
		return HeuristicAnalyzer{}, nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Analyzer.Provider)
	}
}

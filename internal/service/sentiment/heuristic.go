package sentiment

import (
	"context"

	analysis "github.com/zhouzirui/chat-monitor/backend/internal/analysis/sentiment"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// HeuristicAnalyzer 在没有大模型时使用关键词规则进行分析。
type HeuristicAnalyzer struct{}

func (HeuristicAnalyzer) Analyze(ctx context.Context, _ string, turns []chat.Turn) (monitor.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return monitor.AnalysisResult{}, err
	}

	messages := make([]string, len(turns))
	for i, turn := range turns {
		messages[i] = turn.Message
	}

	decision := analysis.Analyze(messages)
	return monitor.AnalysisResult{
		Sentiment:   string(decision.Sentiment),
		Explanation: decision.Explanation(),
		AlertNeeded: decision.AlertNeeded(),
	}, nil
}

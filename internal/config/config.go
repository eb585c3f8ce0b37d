package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
)

// Analyzer providers.
const (
	ProviderArk       = "ark"
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Monitor  MonitorConfig
	Analyzer AnalyzerConfig
	AI       AIConfig
	OpenAI   OpenAIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	monitor, err := loadMonitorConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	openAI := loadOpenAIConfig()

	analyzer, err := loadAnalyzerConfig(ai, openAI)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Monitor: monitor, Analyzer: analyzer, AI: ai, OpenAI: openAI}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// MonitorConfig 描述会话批量分析的参数。
type MonitorConfig struct {
	Participants    chat.Roster
	WindowSize      int
	PollInterval    time.Duration
	AnalysisTimeout time.Duration
	ShutdownGrace   time.Duration
	MaxInFlight     int
	QueueSize       int
	AlertDBPath     string
	UsernameSuffix  string
}

func loadMonitorConfig() (MonitorConfig, error) {
	participants := chat.ParseRoster(getEnvOrDefault("CHAT_PARTICIPANTS", "Alice,Bob"))
	if len(participants) != 2 {
		return MonitorConfig{}, fmt.Errorf("CHAT_PARTICIPANTS must name exactly two participants, got %d", len(participants))
	}

	windowSize, err := parseIntEnv("MONITOR_WINDOW_SIZE", 3)
	if err != nil {
		return MonitorConfig{}, err
	}
	if windowSize < 1 {
		return MonitorConfig{}, fmt.Errorf("invalid MONITOR_WINDOW_SIZE value %d: must be positive", windowSize)
	}

	pollInterval, err := parseDurationEnv("MONITOR_POLL_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return MonitorConfig{}, err
	}

	timeout, err := parseDurationEnv("MONITOR_ANALYSIS_TIMEOUT", 30*time.Second)
	if err != nil {
		return MonitorConfig{}, err
	}

	grace, err := parseDurationEnv("MONITOR_SHUTDOWN_GRACE", 5*time.Second)
	if err != nil {
		return MonitorConfig{}, err
	}

	maxInFlight, err := parseIntEnv("MONITOR_MAX_IN_FLIGHT", 0)
	if err != nil {
		return MonitorConfig{}, err
	}

	queueSize, err := parseIntEnv("MONITOR_QUEUE_SIZE", 64)
	if err != nil {
		return MonitorConfig{}, err
	}

	suffix, ok := os.LookupEnv("MONITOR_USERNAME_SUFFIX")
	if !ok {
		suffix = "_demo"
	}

	return MonitorConfig{
		Participants:    participants,
		WindowSize:      windowSize,
		PollInterval:    pollInterval,
		AnalysisTimeout: timeout,
		ShutdownGrace:   grace,
		MaxInFlight:     maxInFlight,
		QueueSize:       queueSize,
		AlertDBPath:     strings.TrimSpace(os.Getenv("MONITOR_ALERT_DB")),
		UsernameSuffix:  strings.TrimSpace(suffix),
	}, nil
}

// Session 转换为会话控制器的配置。
func (c MonitorConfig) Session() monitorservice.Config {
	return monitorservice.Config{
		Participants:    c.Participants,
		WindowSize:      c.WindowSize,
		PollInterval:    c.PollInterval,
		AnalysisTimeout: c.AnalysisTimeout,
		ShutdownGrace:   c.ShutdownGrace,
		MaxInFlight:     c.MaxInFlight,
		QueueSize:       c.QueueSize,
		UsernameSuffix:  c.UsernameSuffix,
	}
}

// AnalyzerConfig 选择情绪分析的实现。
type AnalyzerConfig struct {
	Provider string
}

func loadAnalyzerConfig(ai AIConfig, openAI OpenAIConfig) (AnalyzerConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("ANALYZER_PROVIDER")))
	switch provider {
	case "":
		// 未指定时优先使用 Ark，其次 OpenAI，最后回退到关键词启发式。
		switch {
		case ai.Enabled():
			provider = ProviderArk
		case openAI.Enabled():
			provider = ProviderOpenAI
		default:
			provider = ProviderHeuristic
		}
	case ProviderArk, ProviderOpenAI, ProviderHeuristic:
	default:
		return AnalyzerConfig{}, fmt.Errorf("invalid ANALYZER_PROVIDER value %q", provider)
	}
	return AnalyzerConfig{Provider: provider}, nil
}

// AIConfig 描述 Ark 大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// OpenAIConfig 描述 OpenAI 兼容接口配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled 表示是否提供了 API Key。
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DashScope的OpenAI兼容endpoint
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-plus"
)

var agentTracer = otel.Tracer("recruit-agent-go/agent")

// ChatClient 匹配分析所需的最小LLM能力
// 生产实现为AliyunQwenChatModel，测试用MockChatClient
type ChatClient interface {
	Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error)
}

// GenerateOptions 单次调用的生成参数
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// AliyunQwenChatModel 通过OpenAI兼容API调用阿里云通义千问。
// 实现 model.BaseChatModel，匹配分析不涉及工具调用。
type AliyunQwenChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	genOpts    GenerateOptions
}

// NewAliyunQwenChatModel 创建通义千问客户端
func NewAliyunQwenChatModel(apiKey, modelName, apiURL string, genOpts GenerateOptions) (*AliyunQwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultQwenModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = openAICompatibleQwenAPIURL
	}

	logger.Info().Str("api_url", url).Str("model", mn).Msg("使用阿里云通义千问 LLM 客户端")

	return &AliyunQwenChatModel{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		genOpts:    genOpts,
	}, nil
}

// openAIChatCompletionRequest OpenAI兼容请求体
// eino的schema.Message在role/content上与OpenAI格式兼容
type openAIChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIChatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

// Generate 实现 model.BaseChatModel 接口
func (aq *AliyunQwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	ctx, span := agentTracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", aq.modelName),
		attribute.Int("llm.message_count", len(messages)),
	)

	for _, opt := range options {
		_ = opt
	}

	reqPayload := openAIChatCompletionRequest{
		Model:       aq.modelName,
		Messages:    messages,
		Temperature: aq.genOpts.Temperature,
		MaxTokens:   aq.genOpts.MaxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, aq.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+aq.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Ctx(ctx).Debug().
		Str("api_url", aq.apiURL).
		Str("model", aq.modelName).
		Int("prompt_bytes", len(jsonData)).
		Msg("发送 LLM 请求")

	httpResp, err := aq.httpClient.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, "http request failed")
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, httpResp.Status)
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, tracing.TruncateString(string(bodyBytes), 300))
	}

	var openAIResp openAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &openAIResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, tracing.TruncateString(string(bodyBytes), 300))
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", tracing.TruncateString(string(bodyBytes), 300))
	}

	apiMessage := openAIResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	span.SetAttributes(attribute.Int("llm.response_bytes", len(responseContent)))

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.Assistant
	}

	return resultMessage, nil
}

// Stream 实现 model.BaseChatModel 接口，匹配分析走同步Generate
func (aq *AliyunQwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("AliyunQwenChatModel (OpenAI 兼容) 的 Stream 方法未实现")
}

var _ model.BaseChatModel = (*AliyunQwenChatModel)(nil)
var _ ChatClient = (*AliyunQwenChatModel)(nil)

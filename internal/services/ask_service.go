package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/seatrade/rag-backend/internal/errors"
	"github.com/seatrade/rag-backend/internal/knowledge"
	"github.com/seatrade/rag-backend/internal/metrics"
)

// 请求参数默认值
const (
	DefaultTopK      = 8
	DefaultMaxTokens = 600
)

// NoMatchAnswer 索引中没有相关内容时的固定回答
const NoMatchAnswer = "No relevant material found."

// AskRequest 问答请求
type AskRequest struct {
	Query     string `json:"query" validate:"required,min=1"`
	TopK      int    `json:"top_k" validate:"min=1,max=50"`
	MaxTokens int    `json:"max_tokens" validate:"min=64,max=2000"`
}

// AskSource 回答引用的单条出处
type AskSource struct {
	Score  float64 `json:"score"`
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Page   int     `json:"page,omitempty"`
	Text   string  `json:"text"`
}

// AskResponse 问答响应。Sources与提示词中的[n]编号一一对应。
type AskResponse struct {
	Answer  string      `json:"answer"`
	Sources []AskSource `json:"sources"`
}

// ChatCompleter 语言模型调用抽象
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// OpenAIChat 基于OpenAI Chat Completions的实现
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// NewOpenAIChat 创建聊天模型客户端
func NewOpenAIChat(apiKey, model string) *OpenAIChat {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIChat{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *OpenAIChat) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AskService 问答编排器：向量检索 + 有据提示词 + 单次模型调用
type AskService struct {
	embedder knowledge.Embedder
	store    knowledge.VectorStore
	chat     ChatCompleter
	validate *validator.Validate
}

// NewAskService 创建问答编排器
func NewAskService(embedder knowledge.Embedder, store knowledge.VectorStore, chat ChatCompleter) *AskService {
	return &AskService{
		embedder: embedder,
		store:    store,
		chat:     chat,
		validate: validator.New(),
	}
}

// Normalize 填充默认值，校验前调用
func (r *AskRequest) Normalize() {
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
}

// Ask 回答一个问题。零命中返回固定回答和空出处列表，属于成功状态。
func (s *AskService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	req.Normalize()
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	embedStart := time.Now()
	queryVector, err := s.embedder.EmbedOne(ctx, req.Query)
	metrics.ExternalCallDuration.WithLabelValues("embedding").Observe(time.Since(embedStart).Seconds())
	if err != nil {
		metrics.AskRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewExternalError("embedding", err.Error())
	}

	queryStart := time.Now()
	matches, err := s.store.Query(ctx, queryVector, req.TopK)
	metrics.ExternalCallDuration.WithLabelValues("vector_index").Observe(time.Since(queryStart).Seconds())
	if err != nil {
		metrics.AskRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewExternalError("vector index", err.Error())
	}

	if len(matches) == 0 {
		metrics.AskRequestsTotal.WithLabelValues("no_match").Inc()
		return &AskResponse{
			Answer:  NoMatchAnswer,
			Sources: []AskSource{},
		}, nil
	}

	prompt := BuildPrompt(req.Query, matches)

	chatStart := time.Now()
	answer, err := s.chat.Complete(ctx, prompt, req.MaxTokens)
	metrics.ExternalCallDuration.WithLabelValues("chat").Observe(time.Since(chatStart).Seconds())
	if err != nil {
		metrics.AskRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.NewExternalError("chat model", err.Error())
	}

	sources := make([]AskSource, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, AskSource{
			Score:  m.Score,
			ID:     m.ID,
			Source: m.Metadata.Source,
			Text:   m.Metadata.Text,
		})
	}

	metrics.AskRequestsTotal.WithLabelValues("answered").Inc()
	return &AskResponse{
		Answer:  answer,
		Sources: sources,
	}, nil
}

// BuildPrompt 组装有据提示词。上下文块按索引返回的相关性顺序编号，不重排。
func BuildPrompt(question string, matches []knowledge.QueryMatch) string {
	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		src := m.Metadata.Source
		if src == "" {
			src = m.ID
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s", i+1, src, m.Metadata.Text))
	}

	header := "You are a shipping market analysis assistant. Answer only from the provided context. " +
		"If the context is not sufficient, reply \"no data\". " +
		"Attribute every claim to its source with a bracketed number.\n\n"

	return header + fmt.Sprintf("Question:\n%s\n\nContext:\n%s", question, strings.Join(blocks, "\n\n---\n\n"))
}

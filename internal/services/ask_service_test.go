package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/seatrade/rag-backend/internal/errors"
	"github.com/seatrade/rag-backend/internal/knowledge"
)

// stubMatchStore 返回预置检索结果并记录收到的topK
type stubMatchStore struct {
	matches  []knowledge.QueryMatch
	gotTopK  int
	queryErr error
}

func (s *stubMatchStore) EnsureCollection(ctx context.Context) error { return nil }

func (s *stubMatchStore) Upsert(ctx context.Context, records []knowledge.VectorRecord) error {
	return nil
}

func (s *stubMatchStore) Query(ctx context.Context, vector []float32, topK int) ([]knowledge.QueryMatch, error) {
	s.gotTopK = topK
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if topK < len(s.matches) {
		return s.matches[:topK], nil
	}
	return s.matches, nil
}

func (s *stubMatchStore) PruneDocument(ctx context.Context, fileID string, keepChunks int) error {
	return nil
}

func (s *stubMatchStore) Ready() bool { return true }

// stubChat 记录提示词并返回固定回答
type stubChat struct {
	prompt       string
	gotMaxTokens int
	reply        string
	err          error
}

func (s *stubChat) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.prompt = prompt
	s.gotMaxTokens = maxTokens
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func rankedMatches(n int) []knowledge.QueryMatch {
	matches := make([]knowledge.QueryMatch, 0, n)
	for i := 0; i < n; i++ {
		matches = append(matches, knowledge.QueryMatch{
			ID:    fmt.Sprintf("doc-1#%d", i),
			Score: 0.9 - float64(i)*0.1,
			Metadata: knowledge.RecordMetadata{
				Text:   fmt.Sprintf("chunk text %d", i),
				Source: fmt.Sprintf("minio://report.pdf#%d", i),
				FileID: "doc-1",
			},
		})
	}
	return matches
}

func TestAskZeroMatches(t *testing.T) {
	store := &stubMatchStore{}
	chat := &stubChat{reply: "should not be called"}
	svc := NewAskService(&fakeEmbedder{}, store, chat)

	resp, err := svc.Ask(context.Background(), AskRequest{Query: "what happened to freight rates?"})
	require.NoError(t, err)

	// 零命中是正常终态：固定回答 + 空出处列表
	assert.Equal(t, NoMatchAnswer, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, chat.prompt)
}

func TestAskDefaultsApplied(t *testing.T) {
	store := &stubMatchStore{matches: rankedMatches(2)}
	chat := &stubChat{reply: "rates rose [1]"}
	svc := NewAskService(&fakeEmbedder{}, store, chat)

	resp, err := svc.Ask(context.Background(), AskRequest{Query: "freight rates?"})
	require.NoError(t, err)

	assert.Equal(t, DefaultTopK, store.gotTopK)
	assert.Equal(t, DefaultMaxTokens, chat.gotMaxTokens)
	assert.Equal(t, "rates rose [1]", resp.Answer)
}

func TestAskValidationBounds(t *testing.T) {
	svc := NewAskService(&fakeEmbedder{}, &stubMatchStore{}, &stubChat{})

	cases := []AskRequest{
		{Query: ""},
		{Query: "q", TopK: 51},
		{Query: "q", TopK: -1},
		{Query: "q", MaxTokens: 63},
		{Query: "q", MaxTokens: 2001},
	}
	for _, req := range cases {
		_, err := svc.Ask(context.Background(), req)
		require.Error(t, err, "request %+v", req)
		appErr := apperrors.GetAppError(err)
		assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode)
	}

	// 边界值本身合法
	store := &stubMatchStore{}
	okSvc := NewAskService(&fakeEmbedder{}, store, &stubChat{reply: "ok"})
	_, err := okSvc.Ask(context.Background(), AskRequest{Query: "q", TopK: 50, MaxTokens: 2000})
	assert.NoError(t, err)
	assert.Equal(t, 50, store.gotTopK)
}

func TestAskPromptNumberingFollowsIndexOrder(t *testing.T) {
	store := &stubMatchStore{matches: rankedMatches(5)}
	chat := &stubChat{reply: "answer"}
	svc := NewAskService(&fakeEmbedder{}, store, chat)

	_, err := svc.Ask(context.Background(), AskRequest{Query: "q", TopK: 3})
	require.NoError(t, err)

	// top_k=3：恰好3个上下文块，按索引返回顺序编号1..3
	assert.Contains(t, chat.prompt, "[1] minio://report.pdf#0\nchunk text 0")
	assert.Contains(t, chat.prompt, "[2] minio://report.pdf#1\nchunk text 1")
	assert.Contains(t, chat.prompt, "[3] minio://report.pdf#2\nchunk text 2")
	assert.NotContains(t, chat.prompt, "[4]")

	pos1 := strings.Index(chat.prompt, "[1]")
	pos2 := strings.Index(chat.prompt, "[2]")
	pos3 := strings.Index(chat.prompt, "[3]")
	assert.True(t, pos1 < pos2 && pos2 < pos3)
}

func TestAskPromptInstructions(t *testing.T) {
	prompt := BuildPrompt("q", rankedMatches(1))

	assert.Contains(t, prompt, "Answer only from the provided context")
	assert.Contains(t, prompt, "no data")
	assert.Contains(t, prompt, "Question:\nq")
}

func TestAskSourcesMirrorMatches(t *testing.T) {
	matches := rankedMatches(3)
	store := &stubMatchStore{matches: matches}
	svc := NewAskService(&fakeEmbedder{}, store, &stubChat{reply: "answer [2]"})

	resp, err := svc.Ask(context.Background(), AskRequest{Query: "q", TopK: 3})
	require.NoError(t, err)

	require.Len(t, resp.Sources, 3)
	for i, src := range resp.Sources {
		assert.Equal(t, matches[i].ID, src.ID)
		assert.Equal(t, matches[i].Score, src.Score)
		assert.Equal(t, matches[i].Metadata.Source, src.Source)
		assert.Equal(t, matches[i].Metadata.Text, src.Text)
	}
}

func TestAskUpstreamFailures(t *testing.T) {
	// 向量检索失败
	store := &stubMatchStore{queryErr: errors.New("index down")}
	svc := NewAskService(&fakeEmbedder{}, store, &stubChat{})
	_, err := svc.Ask(context.Background(), AskRequest{Query: "q"})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.GetAppError(err).HTTPCode)

	// 嵌入调用失败
	svc = NewAskService(&fakeEmbedder{err: errors.New("quota exceeded")}, &stubMatchStore{}, &stubChat{})
	_, err = svc.Ask(context.Background(), AskRequest{Query: "q"})
	require.Error(t, err)

	// 模型调用失败
	svc = NewAskService(&fakeEmbedder{}, &stubMatchStore{matches: rankedMatches(1)}, &stubChat{err: errors.New("model unavailable")})
	_, err = svc.Ask(context.Background(), AskRequest{Query: "q"})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.GetAppError(err).HTTPCode)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatrade/rag-backend/internal/knowledge"
	"github.com/seatrade/rag-backend/internal/source"
)

// fakeSource 内存文档来源
type fakeSource struct {
	docs        []source.Document
	data        map[string][]byte
	listErr     error
	downloadErr map[string]error
}

func (f *fakeSource) List(ctx context.Context) ([]source.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.docs, nil
}

func (f *fakeSource) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := f.downloadErr[fileID]; err != nil {
		return nil, err
	}
	data, ok := f.data[fileID]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", fileID)
	}
	return data, nil
}

func (f *fakeSource) Scheme() string { return "fake" }

// fakeEmbedder 每段文本返回固定向量，并记录每批大小
type fakeEmbedder struct {
	batchSizes []int
	err        error
}

func fixedVector() []float32 { return []float32{1, 0, 0} }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = fixedVector()
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Ready() bool     { return true }

// fakeVectorStore 内存向量索引，按ID覆盖写入
type fakeVectorStore struct {
	records     map[string]knowledge.VectorRecord
	order       []string
	upsertCalls int
	ensured     int
	pruned      map[string]int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		records: make(map[string]knowledge.VectorRecord),
		pruned:  make(map[string]int),
	}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, records []knowledge.VectorRecord) error {
	f.upsertCalls++
	for _, r := range records {
		if _, exists := f.records[r.ID]; !exists {
			f.order = append(f.order, r.ID)
		}
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]knowledge.QueryMatch, error) {
	var matches []knowledge.QueryMatch
	for _, id := range f.order {
		r := f.records[id]
		if len(r.Values) != len(vector) {
			continue
		}
		same := true
		for i := range vector {
			if r.Values[i] != vector[i] {
				same = false
				break
			}
		}
		if !same {
			continue
		}
		matches = append(matches, knowledge.QueryMatch{
			ID:       r.ID,
			Score:    1,
			Metadata: r.Metadata,
		})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (f *fakeVectorStore) PruneDocument(ctx context.Context, fileID string, keepChunks int) error {
	f.pruned[fileID] = keepChunks
	for id, r := range f.records {
		if r.Metadata.FileID == fileID && r.ChunkIndex >= keepChunks {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeVectorStore) Ready() bool { return true }

func newTestSyncService(src source.Source, store knowledge.VectorStore, embedder knowledge.Embedder, batchSize int) *SyncService {
	return NewSyncService(
		src,
		knowledge.NewExtractorManager(),
		knowledge.NewChunker(5, 1),
		embedder,
		store,
		nil, // Redis未启用
		batchSize,
	)
}

func textDoc(id, name string) source.Document {
	return source.Document{
		ID:           id,
		Name:         name,
		MIMEType:     "text/plain",
		ModifiedTime: time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestSyncRunNoFiles(t *testing.T) {
	store := newFakeVectorStore()
	svc := newTestSyncService(&fakeSource{}, store, &fakeEmbedder{}, 64)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SyncStatusNoFiles, result.Status)
	assert.Zero(t, result.Files)
	assert.Zero(t, result.Chunks)
	assert.Zero(t, store.upsertCalls)
	assert.Zero(t, store.ensured)
}

func TestSyncRunListFailure(t *testing.T) {
	svc := newTestSyncService(&fakeSource{listErr: errors.New("source down")}, newFakeVectorStore(), &fakeEmbedder{}, 64)

	_, err := svc.Run(context.Background())
	assert.Error(t, err)
}

func TestSyncRunCountsAndMetadata(t *testing.T) {
	src := &fakeSource{
		docs: []source.Document{textDoc("doc-1", "alpha.txt")},
		data: map[string][]byte{"doc-1": []byte("ALPHA BETA")},
	}
	store := newFakeVectorStore()
	svc := newTestSyncService(src, store, &fakeEmbedder{}, 64)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	// "ALPHA BETA" 按 S=5,O=1 切成 "ALPHA", "A BET", "TA"
	assert.Equal(t, SyncStatusOK, result.Status)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, 1, store.ensured)

	rec, ok := store.records["doc-1#0"]
	require.True(t, ok)
	assert.Equal(t, "ALPHA", rec.Metadata.Text)
	assert.Equal(t, "fake://alpha.txt#0", rec.Metadata.Source)
	assert.Equal(t, "doc-1", rec.Metadata.FileID)
	assert.Equal(t, "2025-10-30T12:00:00Z", rec.Metadata.MTime)

	// 文档末尾记录清理以当前分块数为界
	assert.Equal(t, 3, store.pruned["doc-1"])
}

func TestSyncRunPerDocumentFailureIsolation(t *testing.T) {
	src := &fakeSource{
		docs: []source.Document{
			textDoc("doc-1", "a.txt"),
			textDoc("doc-2", "b.txt"),
			textDoc("doc-3", "c.txt"),
		},
		data: map[string][]byte{
			"doc-1": []byte("ALPHA"),
			"doc-3": []byte("GAMMA"),
		},
		downloadErr: map[string]error{"doc-2": errors.New("transient storage error")},
	}
	store := newFakeVectorStore()
	svc := newTestSyncService(src, store, &fakeEmbedder{}, 64)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	// 中间文档失败不影响后续文档
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, store.records, "doc-1#0")
	assert.Contains(t, store.records, "doc-3#0")
}

func TestSyncRunSkipsDocumentsWithoutText(t *testing.T) {
	src := &fakeSource{
		docs: []source.Document{
			{ID: "doc-1", Name: "scan.pdf", MIMEType: "application/pdf"},
			textDoc("doc-2", "blank.txt"),
		},
		data: map[string][]byte{
			"doc-1": []byte("not really a pdf"),
			"doc-2": []byte("   \n\t "),
		},
	}
	store := newFakeVectorStore()
	svc := newTestSyncService(src, store, &fakeEmbedder{}, 64)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	// 无可提取文本是跳过，不是失败
	assert.Equal(t, SyncStatusOK, result.Status)
	assert.Zero(t, result.Files)
	assert.Zero(t, result.Failed)
	assert.Zero(t, store.upsertCalls)
}

func TestSyncRunBatchesEmbeddingCalls(t *testing.T) {
	// 20个无空白字符按 S=5,O=1 切成5块
	src := &fakeSource{
		docs: []source.Document{textDoc("doc-1", "long.txt")},
		data: map[string][]byte{"doc-1": []byte("abcdefghijklmnopqrst")},
	}
	store := newFakeVectorStore()
	embedder := &fakeEmbedder{}
	svc := newTestSyncService(src, store, embedder, 2)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Chunks)
	// 每批向量化后立即upsert
	assert.Equal(t, []int{2, 2, 1}, embedder.batchSizes)
	assert.Equal(t, 3, store.upsertCalls)
}

func TestSyncRunResyncDoesNotDuplicate(t *testing.T) {
	src := &fakeSource{
		docs: []source.Document{textDoc("doc-1", "alpha.txt")},
		data: map[string][]byte{"doc-1": []byte("ALPHA BETA")},
	}
	store := newFakeVectorStore()
	svc := newTestSyncService(src, store, &fakeEmbedder{}, 64)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	firstCount := len(store.records)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	// ID由 (文档ID, 分块序号) 派生，重复同步覆盖而不是累积
	assert.Equal(t, firstCount, len(store.records))
}

func TestSyncRunShrunkDocumentPrunesTail(t *testing.T) {
	src := &fakeSource{
		docs: []source.Document{textDoc("doc-1", "alpha.txt")},
		data: map[string][]byte{"doc-1": []byte("ALPHA BETA")},
	}
	store := newFakeVectorStore()
	svc := newTestSyncService(src, store, &fakeEmbedder{}, 64)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, store.records, 3)

	src.data["doc-1"] = []byte("ALPHA")
	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.records, 1)
	assert.Contains(t, store.records, "doc-1#0")
}

func TestSyncThenQueryRoundTrip(t *testing.T) {
	src := &fakeSource{
		docs: []source.Document{textDoc("doc-1", "alpha.txt")},
		data: map[string][]byte{"doc-1": []byte("ALPHA BETA")},
	}
	store := newFakeVectorStore()
	svc := newTestSyncService(src, store, &fakeEmbedder{}, 64)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	matches, err := store.Query(context.Background(), fixedVector(), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// 检索到的文本必须与某个产出分块逐字一致
	assert.Contains(t, []string{"ALPHA", "A BET", "TA"}, matches[0].Metadata.Text)
}

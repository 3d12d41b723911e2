package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seatrade/rag-backend/internal/knowledge"
	"github.com/seatrade/rag-backend/internal/logger"
	"github.com/seatrade/rag-backend/internal/metrics"
	"github.com/seatrade/rag-backend/internal/source"
)

// 同步结果状态
const (
	SyncStatusOK      = "ok"
	SyncStatusNoFiles = "no_files"
)

// SyncResult 一次完整摄取的统计
type SyncResult struct {
	Status string `json:"status"`
	Files  int    `json:"files"`
	Chunks int    `json:"chunks"`
	Failed int    `json:"failed,omitempty"`
}

// SyncService 摄取编排器：列出来源文档，逐个提取、分块、向量化并写入索引。
// 所有协作方通过构造函数注入。
type SyncService struct {
	source    source.Source
	extractor *knowledge.ExtractorManager
	chunker   *knowledge.Chunker
	embedder  knowledge.Embedder
	store     knowledge.VectorStore
	status    *StatusStore
	batchSize int
}

// NewSyncService 创建同步编排器
func NewSyncService(
	src source.Source,
	extractor *knowledge.ExtractorManager,
	chunker *knowledge.Chunker,
	embedder knowledge.Embedder,
	store knowledge.VectorStore,
	status *StatusStore,
	batchSize int,
) *SyncService {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &SyncService{
		source:    src,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		status:    status,
		batchSize: batchSize,
	}
}

// Run 执行一次完整摄取。单个文档的失败只记录并跳过，不中断整个运行。
func (s *SyncService) Run(ctx context.Context) (*SyncResult, error) {
	runID := uuid.NewString()
	started := time.Now()
	s.status.SetRunStatus(ctx, runID, map[string]interface{}{
		"status":     "running",
		"started_at": started.Format(time.RFC3339),
	})

	listStart := time.Now()
	docs, err := s.source.List(ctx)
	metrics.ExternalCallDuration.WithLabelValues("document_source").Observe(time.Since(listStart).Seconds())
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list documents: %w", err)
	}

	if len(docs) == 0 {
		// 空目录是正常结束，不是错误
		metrics.SyncRunsTotal.WithLabelValues(SyncStatusNoFiles).Inc()
		s.status.SetRunStatus(ctx, runID, map[string]interface{}{
			"status":       SyncStatusNoFiles,
			"completed_at": time.Now().Format(time.RFC3339),
		})
		return &SyncResult{Status: SyncStatusNoFiles}, nil
	}

	if err := s.store.EnsureCollection(ctx); err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	result := &SyncResult{Status: SyncStatusOK}
	for _, doc := range docs {
		chunkCount, skipped, err := s.ingestDocument(ctx, doc)
		if err != nil {
			// 错误边界：记录失败并继续处理剩余文档
			logger.Error("document ingestion failed",
				zap.String("run_id", runID),
				zap.String("file_id", doc.ID),
				zap.String("name", doc.Name),
				zap.Error(err))
			metrics.SyncDocumentsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}
		if skipped {
			logger.Debug("document has no extractable text, skipped",
				zap.String("file_id", doc.ID), zap.String("name", doc.Name))
			metrics.SyncDocumentsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		metrics.SyncDocumentsTotal.WithLabelValues("processed").Inc()
		metrics.SyncChunksTotal.Add(float64(chunkCount))
		result.Files++
		result.Chunks += chunkCount
	}

	metrics.SyncRunsTotal.WithLabelValues(SyncStatusOK).Inc()
	s.status.SetRunStatus(ctx, runID, map[string]interface{}{
		"status":       "completed",
		"files":        result.Files,
		"chunks":       result.Chunks,
		"failed":       result.Failed,
		"completed_at": time.Now().Format(time.RFC3339),
	})
	logger.Info("sync run completed",
		zap.String("run_id", runID),
		zap.Int("files", result.Files),
		zap.Int("chunks", result.Chunks),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(started)))
	return result, nil
}

// ingestDocument 处理单个文档：下载、提取、分块、按批向量化并流式写入。
// 每批记录在向量化后立即upsert，不在内存中累积整个文档。
func (s *SyncService) ingestDocument(ctx context.Context, doc source.Document) (int, bool, error) {
	data, err := s.source.Download(ctx, doc.ID)
	if err != nil {
		return 0, false, fmt.Errorf("download: %w", err)
	}

	text := s.extractor.ExtractText(data, doc.MIMEType)
	if text == "" {
		// 无可提取文本属于正常情况，比如扫描版PDF
		return 0, true, nil
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, true, nil
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embedStart := time.Now()
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		metrics.ExternalCallDuration.WithLabelValues("embedding").Observe(time.Since(embedStart).Seconds())
		if err != nil {
			return 0, false, fmt.Errorf("embed batch: %w", err)
		}

		records := make([]knowledge.VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = knowledge.VectorRecord{
				ID:         recordID(doc.ID, c.Index),
				ChunkIndex: c.Index,
				Values:     vectors[i],
				Metadata: knowledge.RecordMetadata{
					Text:   c.Text,
					Source: fmt.Sprintf("%s://%s#%d", s.source.Scheme(), doc.Name, c.Index),
					FileID: doc.ID,
					MTime:  doc.ModifiedTime.UTC().Format(time.RFC3339),
				},
			}
		}

		upsertStart := time.Now()
		err = s.store.Upsert(ctx, records)
		metrics.ExternalCallDuration.WithLabelValues("vector_index").Observe(time.Since(upsertStart).Seconds())
		if err != nil {
			return 0, false, fmt.Errorf("upsert batch: %w", err)
		}
	}

	// 文档比上次同步变短时，清掉超出当前分块数的旧记录
	if err := s.store.PruneDocument(ctx, doc.ID, len(chunks)); err != nil {
		return 0, false, fmt.Errorf("prune document: %w", err)
	}

	return len(chunks), false, nil
}

// recordID 由 (文档ID, 分块序号) 确定性派生，重复同步覆盖旧记录
func recordID(fileID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", fileID, chunkIndex)
}

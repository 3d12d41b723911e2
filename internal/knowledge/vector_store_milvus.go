package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	VectorSize int
	UseTLS     bool
	Timeout    time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
}

// NewMilvusVectorStore 创建Milvus向量存储。集合固定使用余弦相似度。
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "shipping_rag"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 3072
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
	}, nil
}

// EnsureCollection 集合不存在时创建并建索引，随后同步加载。
// LoadCollection以非async方式调用，返回即表示集合可查询。
func (s *milvusVectorStore) EnsureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !hasCollection {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "RAG document chunks",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "256"},
				},
				{
					Name:       "file_id",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "256"},
				},
				{
					Name:     "chunk_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       "text",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:       "source",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "1024"},
				},
				{
					Name:       "mtime",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       "vector",
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.vectorSize)},
				},
			},
		}

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		var index entity.Index
		index, err = entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if err != nil {
			// HNSW参数不被支持时退回IVF_FLAT
			index, err = entity.NewIndexIvfFlat(entity.COSINE, 128)
			if err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}
		if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// Upsert 按主键插入或替换一批记录
func (s *milvusVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	fileIDs := make([]string, 0, len(records))
	chunkIndexes := make([]int64, 0, len(records))
	texts := make([]string, 0, len(records))
	sources := make([]string, 0, len(records))
	mtimes := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))

	for _, r := range records {
		if len(r.Values) != s.vectorSize {
			return fmt.Errorf("record %s has dimension %d, index expects %d", r.ID, len(r.Values), s.vectorSize)
		}
		ids = append(ids, r.ID)
		fileIDs = append(fileIDs, r.Metadata.FileID)
		chunkIndexes = append(chunkIndexes, int64(r.ChunkIndex))
		texts = append(texts, r.Metadata.Text)
		sources = append(sources, r.Metadata.Source)
		mtimes = append(mtimes, r.Metadata.MTime)
		vectors = append(vectors, r.Values)
	}

	_, err := s.milvusClient.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("file_id", fileIDs),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("mtime", mtimes),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}
	return nil
}

// Query 相似度检索，结果保持Milvus返回的相关性排序
func (s *milvusVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		[]string{"file_id", "text", "source", "mtime"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	if len(searchResults) == 0 {
		return []QueryMatch{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []QueryMatch{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var fileIDs, texts, sources, mtimes []string
	for _, field := range result.Fields {
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		switch field.Name() {
		case "file_id":
			fileIDs = col.Data()
		case "text":
			texts = col.Data()
		case "source":
			sources = col.Data()
		case "mtime":
			mtimes = col.Data()
		}
	}

	matches := make([]QueryMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := QueryMatch{}
		if i < len(ids) {
			match.ID = ids[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		if i < len(fileIDs) {
			match.Metadata.FileID = fileIDs[i]
		}
		if i < len(texts) {
			match.Metadata.Text = texts[i]
		}
		if i < len(sources) {
			match.Metadata.Source = sources[i]
		}
		if i < len(mtimes) {
			match.Metadata.MTime = mtimes[i]
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// PruneDocument 删除文档缩短后残留的尾部记录
func (s *milvusVectorStore) PruneDocument(ctx context.Context, fileID string, keepChunks int) error {
	escaped := strings.ReplaceAll(fileID, `"`, `\"`)
	expr := fmt.Sprintf(`file_id == "%s" && chunk_index >= %d`, escaped, keepChunks)

	if err := s.milvusClient.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}
	return nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

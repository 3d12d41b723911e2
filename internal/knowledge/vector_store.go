package knowledge

import "context"

// RecordMetadata 随向量一同存储的元数据
type RecordMetadata struct {
	Text   string
	Source string
	FileID string
	MTime  string
}

// VectorRecord 向量索引中的一条记录。
// ID由 (文档ID, 分块序号) 确定性派生，重复同步时覆盖旧版本而不是累积副本。
type VectorRecord struct {
	ID         string
	ChunkIndex int
	Values     []float32
	Metadata   RecordMetadata
}

// QueryMatch 相似度检索结果，按索引返回的相关性降序排列
type QueryMatch struct {
	ID       string
	Score    float64
	Metadata RecordMetadata
}

// UnavailableVectorStore 索引不可达时的占位实现。
// 进程照常启动对外提供健康检查，特性路径返回明确错误。
type UnavailableVectorStore struct {
	Err error
}

func (u *UnavailableVectorStore) EnsureCollection(ctx context.Context) error {
	return u.Err
}

func (u *UnavailableVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	return u.Err
}

func (u *UnavailableVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error) {
	return nil, u.Err
}

func (u *UnavailableVectorStore) PruneDocument(ctx context.Context, fileID string, keepChunks int) error {
	return u.Err
}

func (u *UnavailableVectorStore) Ready() bool {
	return false
}

// VectorStore 向量索引抽象
type VectorStore interface {
	// EnsureCollection 不存在时创建集合并加载，阻塞直到可查询
	EnsureCollection(ctx context.Context) error
	// Upsert 按ID插入或替换一批记录
	Upsert(ctx context.Context, records []VectorRecord) error
	// Query 返回与查询向量最近的topK条记录及元数据
	Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error)
	// PruneDocument 删除该文档下序号>=keepChunks的记录，文档缩短后清理尾部
	PruneDocument(ctx context.Context, fileID string, keepChunks int) error
	Ready() bool
}

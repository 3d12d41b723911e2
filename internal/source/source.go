package source

import (
	"context"
	"time"
)

// Document 来源系统中的一个文档，管道侧只读
type Document struct {
	ID           string
	Name         string
	MIMEType     string
	ModifiedTime time.Time
}

// Source 文档来源抽象。List内部翻页直到耗尽续页令牌，
// 只返回可摄取的文档（PDF或纯文本，未删除）。
type Source interface {
	List(ctx context.Context) ([]Document, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	// Scheme 来源标识，用于构造 "<scheme>://<name>#<offset>" 形式的出处标签
	Scheme() string
}

// ingestibleMIMEs 管道支持的文档类型
var ingestibleMIMEs = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/markdown":   true,
}

// Ingestible 判断MIME类型是否可被摄取
func Ingestible(mimeType string) bool {
	return ingestibleMIMEs[mimeType]
}

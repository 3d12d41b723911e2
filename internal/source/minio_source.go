package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/seatrade/rag-backend/internal/config"
)

// MinIOSource 以MinIO/S3桶中某个前缀为文档目录
type MinIOSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// ObjectInfo 列表接口返回的对象信息
type ObjectInfo struct {
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	MIMEType     string    `json:"mime_type"`
	ModifiedTime time.Time `json:"modified_time"`
}

// NewMinIOSource 创建MinIO文档来源，桶不存在时创建
func NewMinIOSource(cfg config.ObjectStorageConfig) (*MinIOSource, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "knowledge"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			errStr := err.Error()
			// 并发启动时桶可能刚被建出来
			if !strings.Contains(errStr, "BucketAlreadyExists") &&
				!strings.Contains(errStr, "BucketAlreadyOwnedByYou") {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}

	return &MinIOSource{
		client: client,
		bucket: bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *MinIOSource) Scheme() string {
	return "minio"
}

// List 列出前缀下所有可摄取的对象。ListObjects在SDK内部完成翻页。
func (s *MinIOSource) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list failed: %w", obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}

		mimeType := mimeFromExtension(obj.Key)
		if !Ingestible(mimeType) {
			continue
		}

		docs = append(docs, Document{
			ID:           obj.Key,
			Name:         strings.TrimPrefix(obj.Key, s.prefix),
			MIMEType:     mimeType,
			ModifiedTime: obj.LastModified,
		})
	}
	return docs, nil
}

// Download 读取对象全部字节
func (s *MinIOSource) Download(ctx context.Context, fileID string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object failed: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("minio read object failed: %w", err)
	}
	return data, nil
}

// Put 上传一个对象到来源前缀下，供上传端点使用
func (s *MinIOSource) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	objectKey := s.prefix + name
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put object failed: %w", err)
	}
	return objectKey, nil
}

// Objects 列出前缀下全部对象（不过滤类型），供文件列表端点使用
func (s *MinIOSource) Objects(ctx context.Context) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list failed: %w", obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		infos = append(infos, ObjectInfo{
			Name:         strings.TrimPrefix(obj.Key, s.prefix),
			SizeBytes:    obj.Size,
			MIMEType:     mimeFromExtension(obj.Key),
			ModifiedTime: obj.LastModified,
		})
	}
	return infos, nil
}

// mimeFromExtension 按扩展名推断MIME类型，列表响应中ContentType通常为空
func mimeFromExtension(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

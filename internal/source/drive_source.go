package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/seatrade/rag-backend/internal/config"
)

// DriveSource 以Google Drive文件夹为文档目录
type DriveSource struct {
	service  *drive.Service
	folderID string
}

// NewDriveSource 使用服务账号凭证创建Drive文档来源
func NewDriveSource(ctx context.Context, cfg config.DriveConfig) (*DriveSource, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("drive credentials not configured")
	}
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("drive folder id not configured")
	}

	service, err := drive.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveSource{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

func (s *DriveSource) Scheme() string {
	return "drive"
}

// List 列出文件夹下未删除的PDF和纯文本文件，循环翻页直到NextPageToken为空
func (s *DriveSource) List(ctx context.Context) ([]Document, error) {
	query := fmt.Sprintf(
		"'%s' in parents and trashed = false and (mimeType = 'application/pdf' or mimeType = 'text/plain')",
		s.folderID,
	)

	var docs []Document
	pageToken := ""
	for {
		call := s.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("drive list failed: %w", err)
		}

		for _, f := range resp.Files {
			modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
			docs = append(docs, Document{
				ID:           f.Id,
				Name:         f.Name,
				MIMEType:     f.MimeType,
				ModifiedTime: modified,
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return docs, nil
}

// Download 下载文件内容
func (s *DriveSource) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("drive read content failed: %w", err)
	}
	return data, nil
}

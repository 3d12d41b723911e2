package controllers

import (
	"net/http"

	"github.com/seatrade/rag-backend/app/bootstrap"
	"github.com/seatrade/rag-backend/internal/logger"
	"github.com/seatrade/rag-backend/internal/source"
	"go.uber.org/zap"
)

// FileController 文件上传/列表端点，仅在minio来源下可用
type FileController struct {
	BaseController
	files *source.MinIOSource
}

func (c *FileController) Prepare() {
	if c.files == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.files = app.Files
		}
	}
}

// POST /api/files  (multipart/form-data, field name: file)
func (c *FileController) Upload() {
	if c.files == nil {
		c.JSONError(http.StatusBadRequest, "file endpoints require the minio document source")
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "missing multipart field 'file'")
		return
	}
	defer file.Close()

	ctx := c.Ctx.Request.Context()
	objectKey, err := c.files.Put(ctx, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		logger.Error("file upload failed", zap.String("filename", header.Filename), zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "upload failed")
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"name":       header.Filename,
		"object_key": objectKey,
		"size":       header.Size,
		"mime_type":  header.Header.Get("Content-Type"),
	})
}

// GET /api/files
func (c *FileController) List() {
	if c.files == nil {
		c.JSONError(http.StatusBadRequest, "file endpoints require the minio document source")
		return
	}

	infos, err := c.files.Objects(c.Ctx.Request.Context())
	if err != nil {
		logger.Error("file listing failed", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "list failed")
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"total": len(infos),
		"files": infos,
	})
}

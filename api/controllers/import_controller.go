/*
 * @module api/controllers/import_controller
 * @description 文件导入控制器，提供上传文件的审计与清洗入库接口
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 上传 -> 落盘临时文件 -> 审计/导入 -> 删除临时文件
 * @rules 上传大小受 MaxUploadMB 限制；不可读输入返回 400，批处理冲突返回 409
 * @dependencies github.com/go-chi/render
 * @refs service/pipeline/pipeline.go, service/cleanup/upload_cleanup_service.go
 */

package controllers

import (
	"clientrisk-service/service/cleanup"
	"clientrisk-service/service/pipeline"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const uploadField = "file"

// ImportController 导入控制器
type ImportController struct {
	pipeline  *pipeline.Pipeline
	uploadDir string
	maxBytes  int64
}

// NewImportController 创建导入控制器实例
func NewImportController(deps Dependencies) *ImportController {
	maxMB := deps.Import.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 50
	}
	return &ImportController{
		pipeline:  deps.Pipeline,
		uploadDir: deps.Import.UploadDir,
		maxBytes:  int64(maxMB) << 20,
	}
}

// Audit 审计上传文件
// @Summary 审计上传文件
// @Description 只读检查文件行数、重复行、缺失值与可识别列，不写入数据库
// @Tags 导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV 或 Excel 文件"
// @Success 200 {object} APIResponse{data=cleaning.AuditReport}
// @Failure 400 {object} APIResponse
// @Router /imports/audit [post]
func (c *ImportController) Audit(w http.ResponseWriter, r *http.Request) {
	path, err := c.saveUpload(w, r)
	if err != nil {
		respond(w, r, BadRequestResponse("读取上传文件失败", err))
		return
	}
	defer removeUpload(path)

	report, err := c.pipeline.AuditFile(path)
	if err != nil {
		respond(w, r, ErrorResponse("审计失败", err))
		return
	}
	respond(w, r, SuccessResponse("审计完成", report))
}

// Import 清洗并导入上传文件
// @Summary 导入上传文件
// @Description 审计、清洗、入库，随后重算评分并重训异常检测模型
// @Tags 导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV 或 Excel 文件"
// @Success 200 {object} APIResponse{data=pipeline.ImportResult}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /imports [post]
func (c *ImportController) Import(w http.ResponseWriter, r *http.Request) {
	path, err := c.saveUpload(w, r)
	if err != nil {
		respond(w, r, BadRequestResponse("读取上传文件失败", err))
		return
	}
	defer removeUpload(path)

	result, err := c.pipeline.ImportFile(r.Context(), path)
	if err != nil {
		respond(w, r, ErrorResponse("导入失败", err))
		return
	}
	respond(w, r, SuccessResponse("导入成功", result))
}

// saveUpload 将上传文件写入上传目录，保留原扩展名供读取器识别格式
func (c *ImportController) saveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxBytes)
	if err := r.ParseMultipartForm(c.maxBytes); err != nil {
		return "", fmt.Errorf("解析上传表单失败: %w", err)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return "", fmt.Errorf("缺少上传字段 %s: %w", uploadField, err)
	}
	defer file.Close()

	if c.uploadDir != "" {
		if err := os.MkdirAll(c.uploadDir, 0o750); err != nil {
			return "", fmt.Errorf("创建上传目录失败: %w", err)
		}
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp(c.uploadDir, cleanup.UploadPrefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("保存上传文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("保存上传文件失败: %w", err)
	}

	slog.Info("已接收上传文件", "file", header.Filename, "size", header.Size)
	return tmp.Name(), nil
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("删除上传文件失败", "path", path, "error", err)
	}
}

/*
 * @module service/cleanup/upload_cleanup_service
 * @description 上传文件清理服务，定期删除导入接口遗留的过期临时文件
 * @architecture 分层架构 - 业务服务层
 * @documentReference DESIGN.md
 * @stateFlow 定时触发 -> 扫描上传目录 -> 删除超过保留期的上传文件 -> 记录结果
 * @rules 只删除带上传前缀的普通文件；清理失败不影响系统正常运行
 * @dependencies github.com/robfig/cron/v3
 * @refs api/controllers/import_controller.go, service/init.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// UploadPrefix 导入接口保存上传文件时使用的文件名前缀
const UploadPrefix = "clientrisk-upload-"

// UploadCleanupService 上传文件清理服务
type UploadCleanupService struct {
	dir       string
	retention time.Duration
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	now       func() time.Time
}

// NewUploadCleanupService 创建上传文件清理服务实例
func NewUploadCleanupService(dir string, retention time.Duration) *UploadCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &UploadCleanupService{
		dir:       dir,
		retention: retention,
		cron:      cron.New(cron.WithSeconds()),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// CleanupExpiredUploads 删除超过保留期的上传文件，返回删除数量
func (s *UploadCleanupService) CleanupExpiredUploads(ctx context.Context) (int, error) {
	startTime := time.Now()
	cutoff := s.now().Add(-s.retention)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("读取上传目录失败: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), UploadPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("删除过期上传文件失败", "path", path, "error", err)
			continue
		}
		deleted++
	}

	slog.Info("上传文件清理完成",
		"dir", s.dir,
		"deleted_count", deleted,
		"retention_hours", s.retention.Hours(),
		"duration_ms", time.Since(startTime).Milliseconds())
	return deleted, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *UploadCleanupService) StartScheduledCleanup(spec string) error {
	if s.started {
		return fmt.Errorf("上传文件清理调度器已经启动")
	}

	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.CleanupExpiredUploads(s.ctx); err != nil {
			slog.Error("定时上传文件清理失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("上传文件清理调度器启动成功", "cron", spec, "dir", s.dir)
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *UploadCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false

	slog.Info("上传文件清理调度器已停止")
}

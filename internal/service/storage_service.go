package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"ielts_exam_backend/internal/config"
	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/internal/util"
	"ielts_exam_backend/pkg/logger"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	GetURL(filename string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filepath.FromSlash(filename))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

// GetURL 本地归档不对外提供 HTTP 访问，返回磁盘路径
func (p *LocalStorageProvider) GetURL(filename string) string {
	return filepath.Join(p.Config.LocalPath, filepath.FromSlash(filename))
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	return "/" + p.Config.MinioBucket + "/" + filename
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}

	if err := bucket.PutObject(filename, reader, oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *OSSStorageProvider) GetURL(filename string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, filename)
}

// NewStorageProvider 远端存储初始化失败时退回本地存储
func NewStorageProvider(cfg *config.StorageConfig) StorageProvider {
	var provider StorageProvider
	switch cfg.Type {
	case config.StorageMinio:
		p, err := NewMinioStorageProvider(cfg)
		if err != nil {
			logger.Log.Warn("MinIO 初始化失败，使用本地存储", zap.Error(err))
			break
		}
		provider = p
	case config.StorageOSS:
		p, err := NewOSSStorageProvider(cfg)
		if err != nil {
			logger.Log.Warn("OSS 初始化失败，使用本地存储", zap.Error(err))
			break
		}
		provider = p
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: cfg}
	}
	return provider
}

// ExamReport 归档的成绩报告，不含题目和答案原文
type ExamReport struct {
	SessionID     string              `json:"sessionId"`
	Level         model.Level         `json:"level"`
	SelectedPhase *model.Phase        `json:"selectedPhase"`
	Phase1Scores  *model.PhaseScores  `json:"phase1Scores"`
	Phase2Scores  *model.PhaseScores  `json:"phase2Scores"`
	FinalResults  *model.FinalResults `json:"finalResults"`
	ArchivedAt    time.Time           `json:"archivedAt"`
}

// ReportArchiver 将完成的考试成绩写入对象存储
type ReportArchiver struct {
	Provider StorageProvider
	now      func() time.Time
}

func NewReportArchiver(provider StorageProvider) *ReportArchiver {
	return &ReportArchiver{Provider: provider, now: time.Now}
}

// ReportPath 报告按归档日期分目录
func ReportPath(sessionID string, at time.Time) string {
	return path.Join(util.ReportArchiveDir, at.Format(util.DateFormat), sessionID+".json")
}

func (a *ReportArchiver) Archive(ctx context.Context, session *model.ExamSession) (string, error) {
	report := ExamReport{
		SessionID:     session.ID,
		Level:         session.Level,
		SelectedPhase: session.SelectedPhase,
		ArchivedAt:    a.now(),
	}
	if err := decodeJSONColumn(session.Phase1Scores, &report.Phase1Scores); err != nil {
		return "", err
	}
	if err := decodeJSONColumn(session.Phase2Scores, &report.Phase2Scores); err != nil {
		return "", err
	}
	if err := decodeJSONColumn(session.FinalResults, &report.FinalResults); err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	filename := ReportPath(session.ID, report.ArchivedAt)
	url, err := a.Provider.Upload(ctx, filename, bytes.NewReader(body), int64(len(body)), util.MimeJSON)
	if err != nil {
		return "", fmt.Errorf("archive report %s: %w", session.ID, err)
	}
	return url, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/dushixiang/promsight/internal/models"
	"github.com/dushixiang/promsight/internal/repo"

	"go.uber.org/zap"
)

// ErrHistoryDisabled 未启用分析历史
var ErrHistoryDisabled = errors.New("analysis history is disabled")

// HistoryService 分析历史，repo 为 nil 表示未启用
type HistoryService struct {
	logger *zap.Logger
	repo   *repo.AnalysisRepo
}

func NewHistoryService(logger *zap.Logger, analysisRepo *repo.AnalysisRepo) *HistoryService {
	return &HistoryService{
		logger: logger,
		repo:   analysisRepo,
	}
}

// Enabled 是否启用
func (s *HistoryService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Store 以 HistoryStore 形式返回，未启用时为 nil
func (s *HistoryService) Store() HistoryStore {
	if !s.Enabled() {
		return nil
	}
	return s
}

// Create 保存一条分析记录
func (s *HistoryService) Create(ctx context.Context, record *models.Analysis) error {
	if !s.Enabled() {
		return ErrHistoryDisabled
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return err
	}
	s.logger.Debug("分析历史已保存", zap.String("id", record.ID), zap.String("outcome", record.Outcome))
	return nil
}

// List 分页查询，page 从 1 开始
func (s *HistoryService) List(ctx context.Context, query string, page, size int) ([]models.Analysis, int64, error) {
	if !s.Enabled() {
		return nil, 0, ErrHistoryDisabled
	}
	if page < 1 {
		page = 1
	}
	return s.repo.List(ctx, query, (page-1)*size, size)
}

// Get 按 ID 查询
func (s *HistoryService) Get(ctx context.Context, id string) (*models.Analysis, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	return s.repo.FindByID(ctx, id)
}

// Prune 删除创建时间早于 retention 之前的记录，retention <= 0 时不做处理
func (s *HistoryService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if !s.Enabled() {
		return 0, ErrHistoryDisabled
	}
	if retention <= 0 {
		return 0, nil
	}
	before := time.Now().Add(-retention)
	deleted, err := s.repo.DeleteBefore(ctx, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	s.logger.Info("已清理过期分析历史", zap.Int64("deleted", deleted), zap.Time("before", before))
	return deleted, nil
}

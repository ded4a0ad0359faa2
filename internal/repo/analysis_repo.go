package repo

import (
	"context"
	"errors"

	"github.com/dushixiang/promsight/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAnalysisNotFound 记录不存在
var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisRepo 分析历史数据访问层
type AnalysisRepo struct {
	db *gorm.DB
}

func NewAnalysisRepo(db *gorm.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Create 保存一条记录，ID 为空时自动生成
func (r *AnalysisRepo) Create(ctx context.Context, record *models.Analysis) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID 按 ID 查询
func (r *AnalysisRepo) FindByID(ctx context.Context, id string) (*models.Analysis, error) {
	var record models.Analysis
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List 按创建时间倒序分页查询，query 非空时精确过滤
func (r *AnalysisRepo) List(ctx context.Context, query string, offset, limit int) ([]models.Analysis, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Analysis{})
	if query != "" {
		tx = tx.Where("query = ?", query)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.Analysis
	err := tx.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeleteBefore 删除早于指定时间（毫秒）的记录
func (r *AnalysisRepo) DeleteBefore(ctx context.Context, before int64) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.Analysis{})
	return result.RowsAffected, result.Error
}

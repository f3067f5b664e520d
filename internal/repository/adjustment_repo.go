package repository

import (
	"context"
	"errors"

	"casinoledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAdjustmentNotFound = errors.New("余额调整记录不存在")
)

// AdjustmentRepository 余额调整只提供新增与查询
type AdjustmentRepository struct {
	db *gorm.DB
}

func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

func (r *AdjustmentRepository) Create(ctx context.Context, tx *gorm.DB, adj *model.CasinoBalanceAdjustment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(adj).Error
}

func (r *AdjustmentRepository) GetByAdjustmentNo(ctx context.Context, adjustmentNo string) (*model.CasinoBalanceAdjustment, error) {
	var adj model.CasinoBalanceAdjustment
	err := r.db.WithContext(ctx).Where("adjustment_no = ?", adjustmentNo).First(&adj).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdjustmentNotFound
		}
		return nil, err
	}
	return &adj, nil
}

func (r *AdjustmentRepository) List(ctx context.Context, page, pageSize int) ([]*model.CasinoBalanceAdjustment, int64, error) {
	var adjustments []*model.CasinoBalanceAdjustment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CasinoBalanceAdjustment{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&adjustments).Error

	return adjustments, total, err
}

// Sum 全部调整金额之和，即赌场余额的累计变动
func (r *AdjustmentRepository) Sum(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.CasinoBalanceAdjustment{}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

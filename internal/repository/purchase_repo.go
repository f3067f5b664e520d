package repository

import (
	"context"
	"errors"

	"casinoledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPurchaseNotFound = errors.New("买码记录不存在")
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *PurchaseRepository) Create(ctx context.Context, tx *gorm.DB, purchase *model.ChipPurchase) error {
	return r.conn(tx).WithContext(ctx).Create(purchase).Error
}

// ListCreditBySeat 座位上 payment_type=credit 且 amount>0 的买码记录
func (r *PurchaseRepository) ListCreditBySeat(ctx context.Context, tx *gorm.DB, sessionID string, seatNo int) ([]*model.ChipPurchase, error) {
	var purchases []*model.ChipPurchase
	err := r.conn(tx).WithContext(ctx).
		Where("session_id = ? AND seat_no = ? AND payment_type = ? AND amount > 0",
			sessionID, seatNo, model.PaymentTypeCredit).
		Order("created_at ASC, id ASC").
		Find(&purchases).Error
	return purchases, err
}

// ListBySeat 座位上的全部买码记录
func (r *PurchaseRepository) ListBySeat(ctx context.Context, tx *gorm.DB, sessionID string, seatNo int) ([]*model.ChipPurchase, error) {
	var purchases []*model.ChipPurchase
	err := r.conn(tx).WithContext(ctx).
		Where("session_id = ? AND seat_no = ?", sessionID, seatNo).
		Order("created_at ASC, id ASC").
		Find(&purchases).Error
	return purchases, err
}

func (r *PurchaseRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := r.conn(tx).WithContext(ctx).Where("id = ?", id).Delete(&model.ChipPurchase{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

func (r *PurchaseRepository) UpdateAmount(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.ChipPurchase{}).
		Where("id = ?", id).
		Update("amount", amount)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

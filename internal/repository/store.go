package repository

import (
	"context"
	"errors"

	"casinoledger/internal/model"

	"gorm.io/gorm"
)

// TxStore 绑定在同一个 gorm 事务上的存储句柄
//
// 欠款结清的所有读写都通过它完成，事务的提交与回滚由调用方的 db.Transaction 负责
type TxStore struct {
	tx          *gorm.DB
	purchases   *PurchaseRepository
	adjustments *AdjustmentRepository
	tables      *TableRepository
}

func NewTxStore(tx *gorm.DB) *TxStore {
	return &TxStore{
		tx:          tx,
		purchases:   NewPurchaseRepository(tx),
		adjustments: NewAdjustmentRepository(tx),
		tables:      NewTableRepository(tx),
	}
}

func (s *TxStore) CreditPurchases(ctx context.Context, sessionID string, seatNo int) ([]*model.ChipPurchase, error) {
	return s.purchases.ListCreditBySeat(ctx, s.tx, sessionID, seatNo)
}

func (s *TxStore) DeletePurchase(ctx context.Context, id int64) error {
	return s.purchases.Delete(ctx, s.tx, id)
}

func (s *TxStore) UpdatePurchaseAmount(ctx context.Context, id int64, amount int64) error {
	return s.purchases.UpdateAmount(ctx, s.tx, id, amount)
}

func (s *TxStore) CreateAdjustment(ctx context.Context, adj *model.CasinoBalanceAdjustment) error {
	return s.adjustments.Create(ctx, s.tx, adj)
}

// TableByID 赌台不存在时返回 nil, nil
func (s *TxStore) TableByID(ctx context.Context, id int64) (*model.Table, error) {
	table, err := s.tables.GetByID(ctx, s.tx, id)
	if errors.Is(err, ErrTableNotFound) {
		return nil, nil
	}
	return table, err
}

package repository

import (
	"context"
	"errors"

	"casinoledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTableNotFound = errors.New("赌台不存在")
)

type TableRepository struct {
	db *gorm.DB
}

func NewTableRepository(db *gorm.DB) *TableRepository {
	return &TableRepository{db: db}
}

func (r *TableRepository) Create(ctx context.Context, table *model.Table) error {
	return r.db.WithContext(ctx).Create(table).Error
}

func (r *TableRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Table, error) {
	if tx == nil {
		tx = r.db
	}
	var table model.Table
	err := tx.WithContext(ctx).Where("id = ?", id).First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	return &table, nil
}

package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"casinoledger/internal/model"
	"casinoledger/internal/repository"
	"casinoledger/pkg/idgen"

	"gorm.io/gorm"
)

const (
	commentMinLength = 1
	commentMaxLength = 500
	maxPageSize      = 100
)

// AdjustmentService 人工余额调整与调整记录查询
type AdjustmentService struct {
	db             *gorm.DB
	adjustmentRepo *repository.AdjustmentRepository
}

func NewAdjustmentService(db *gorm.DB) *AdjustmentService {
	return &AdjustmentService{
		db:             db,
		adjustmentRepo: repository.NewAdjustmentRepository(db),
	}
}

// CreateManualAdjustment 正数为收入，负数为支出
func (s *AdjustmentService) CreateManualAdjustment(ctx context.Context, amount int64, comment string, actorID int64) (*model.CasinoBalanceAdjustment, error) {
	if amount == 0 {
		return nil, ErrAmountZero
	}

	comment = strings.TrimSpace(comment)
	n := utf8.RuneCountInString(comment)
	if n < commentMinLength || n > commentMaxLength {
		return nil, ErrInvalidComment
	}

	adj := &model.CasinoBalanceAdjustment{
		AdjustmentNo:    idgen.GenerateAdjustmentNo(),
		Amount:          amount,
		Comment:         comment,
		CreatedByUserID: actorID,
	}
	if err := s.adjustmentRepo.Create(ctx, nil, adj); err != nil {
		return nil, fmt.Errorf("写入余额调整失败: %w", err)
	}

	log.Printf("[AdjustmentService] 人工调整: no=%s, amount=%d, actor=%d", adj.AdjustmentNo, amount, actorID)
	return adj, nil
}

func (s *AdjustmentService) ListAdjustments(ctx context.Context, page, pageSize int) ([]*model.CasinoBalanceAdjustment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.adjustmentRepo.List(ctx, page, pageSize)
}

func (s *AdjustmentService) GetAdjustment(ctx context.Context, adjustmentNo string) (*model.CasinoBalanceAdjustment, error) {
	return s.adjustmentRepo.GetByAdjustmentNo(ctx, adjustmentNo)
}

// Balance 所有调整金额之和
func (s *AdjustmentService) Balance(ctx context.Context) (int64, error) {
	return s.adjustmentRepo.Sum(ctx)
}

package service

import (
	"context"
	"fmt"
	"log"

	"casinoledger/internal/infrastructure/metrics"
	"casinoledger/internal/model"
	"casinoledger/internal/repository"

	"gorm.io/gorm"
)

type PurchaseService struct {
	db           *gorm.DB
	sessionRepo  *repository.SessionRepository
	purchaseRepo *repository.PurchaseRepository
}

func NewPurchaseService(db *gorm.DB) *PurchaseService {
	return &PurchaseService{
		db:           db,
		sessionRepo:  repository.NewSessionRepository(db),
		purchaseRepo: repository.NewPurchaseRepository(db),
	}
}

type RecordPurchaseRequest struct {
	SessionID   string
	SeatNo      int
	PaymentType string
	Amount      int64
	ActorID     int64
}

// RecordPurchase 记录买码，只允许在进行中的场次上记录
func (s *PurchaseService) RecordPurchase(ctx context.Context, req *RecordPurchaseRequest) (*model.ChipPurchase, error) {
	if !model.IsValidPaymentType(req.PaymentType) {
		return nil, ErrInvalidPaymentType
	}
	if req.Amount == 0 {
		return nil, ErrAmountZero
	}

	purchase := &model.ChipPurchase{
		SessionID:   req.SessionID,
		SeatNo:      req.SeatNo,
		PaymentType: req.PaymentType,
		Amount:      req.Amount,
		CreatedBy:   req.ActorID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.sessionRepo.GetByID(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return ErrSessionNotOpen
		}
		if _, err := s.sessionRepo.GetSeat(ctx, tx, req.SessionID, req.SeatNo); err != nil {
			return err
		}
		if err := s.purchaseRepo.Create(ctx, tx, purchase); err != nil {
			return fmt.Errorf("写入买码记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ChipPurchases.WithLabelValues(req.PaymentType).Inc()
	log.Printf("[PurchaseService] 买码成功: session=%s, seat=%d, type=%s, amount=%d",
		req.SessionID, req.SeatNo, req.PaymentType, req.Amount)
	return purchase, nil
}

// ListSeatPurchases 座位上的全部买码记录（含现金）
func (s *PurchaseService) ListSeatPurchases(ctx context.Context, sessionID string, seatNo int) ([]*model.ChipPurchase, error) {
	if _, err := s.sessionRepo.GetSeat(ctx, nil, sessionID, seatNo); err != nil {
		return nil, err
	}
	return s.purchaseRepo.ListBySeat(ctx, nil, sessionID, seatNo)
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"casinoledger/internal/config"
	"casinoledger/internal/infrastructure/lock"
	"casinoledger/internal/infrastructure/metrics"
	"casinoledger/internal/model"
	"casinoledger/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementService 手动结清玩家欠款（部分或全部）
type SettlementService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	credit      *CreditService
	sessionRepo *repository.SessionRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, credit *CreditService) *SettlementService {
	return &SettlementService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		credit:      credit,
		sessionRepo: repository.NewSessionRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type ClosePartialCreditRequest struct {
	SessionID string
	SeatNo    int
	Amount    int64
	ActorID   int64
}

type ClosePartialCreditResponse struct {
	AdjustmentNo string `json:"adjustment_no"`
	SessionID    string `json:"session_id"`
	SeatNo       int    `json:"seat_no"`
	Amount       int64  `json:"amount"`
	Remaining    int64  `json:"remaining"`
	Comment      string `json:"comment"`
}

// SeatCredit 座位当前欠款
type SeatCredit struct {
	SessionID   string                `json:"session_id"`
	SeatNo      int                   `json:"seat_no"`
	PlayerName  string                `json:"player_name"`
	Outstanding int64                 `json:"outstanding"`
	Purchases   []*model.ChipPurchase `json:"purchases"`
}

func lockTTL(cfg *config.Config) time.Duration {
	if cfg.Business.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Business.LockTTLSeconds) * time.Second
}

func acquireSessionLock(ctx context.Context, client *redis.Client, cfg *config.Config, sessionID string) (*lock.DistributedLock, error) {
	l := lock.NewSessionLock(client, sessionID, uuid.NewString(), lockTTL(cfg))
	if err := l.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	return l, nil
}

func acquireTableLock(ctx context.Context, client *redis.Client, cfg *config.Config, tableID int64) (*lock.DistributedLock, error) {
	l := lock.NewTableLock(client, tableID, uuid.NewString(), lockTTL(cfg))
	if err := l.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	return l, nil
}

// ClosePartialCredit 玩家还款时结清指定金额的欠款
func (s *SettlementService) ClosePartialCredit(ctx context.Context, req *ClosePartialCreditRequest) (*ClosePartialCreditResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sessionLock, err := acquireSessionLock(ctx, s.redisClient, s.cfg, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer sessionLock.Unlock(ctx)

	var resp *ClosePartialCreditResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.sessionRepo.GetByID(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		seat, err := s.sessionRepo.GetSeat(ctx, tx, req.SessionID, req.SeatNo)
		if err != nil {
			return err
		}

		store := repository.NewTxStore(tx)
		purchases, err := s.credit.CreditPurchases(ctx, store, session.ID, seat.SeatNo)
		if err != nil {
			return fmt.Errorf("查询欠款记录失败: %w", err)
		}
		available := TotalCredit(purchases)
		if available == 0 {
			return ErrNoCreditFound
		}
		if req.Amount > available {
			return fmt.Errorf("%w: 结清 %d, 可用 %d", ErrAmountExceedsCredit, req.Amount, available)
		}

		adjustment, err := s.credit.CloseCredit(ctx, store, session, seat, req.Amount, req.ActorID)
		if err != nil {
			return err
		}

		resp = &ClosePartialCreditResponse{
			AdjustmentNo: adjustment.AdjustmentNo,
			SessionID:    session.ID,
			SeatNo:       seat.SeatNo,
			Amount:       adjustment.Amount,
			Remaining:    available - req.Amount,
			Comment:      adjustment.Comment,
		}

		msg, err := newOutboxMessage(model.EventCreditSettled, s.cfg.Kafka.Topic.CreditSettled, adjustment.AdjustmentNo, map[string]interface{}{
			"adjustment_no": adjustment.AdjustmentNo,
			"session_id":    session.ID,
			"seat_no":       seat.SeatNo,
			"amount":        adjustment.Amount,
			"remaining":     resp.Remaining,
			"source":        metrics.SourcePartial,
			"actor_id":      req.ActorID,
			"settled_at":    time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveSettlement(metrics.SourcePartial, resp.Amount)
	log.Printf("[SettlementService] 结清欠款成功: session=%s, seat=%d, amount=%d, remaining=%d, adjustment=%s",
		resp.SessionID, resp.SeatNo, resp.Amount, resp.Remaining, resp.AdjustmentNo)

	return resp, nil
}

// SeatCredit 查询座位欠款明细
func (s *SettlementService) SeatCredit(ctx context.Context, sessionID string, seatNo int) (*SeatCredit, error) {
	seat, err := s.sessionRepo.GetSeat(ctx, nil, sessionID, seatNo)
	if err != nil {
		return nil, err
	}

	purchases, err := s.credit.CreditPurchases(ctx, repository.NewTxStore(s.db), sessionID, seatNo)
	if err != nil {
		return nil, err
	}

	return &SeatCredit{
		SessionID:   sessionID,
		SeatNo:      seatNo,
		PlayerName:  seat.PlayerName,
		Outstanding: TotalCredit(purchases),
		Purchases:   purchases,
	}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"casinoledger/internal/config"
	"casinoledger/internal/infrastructure/metrics"
	"casinoledger/internal/model"
	"casinoledger/internal/repository"
	"casinoledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const maxPlayerNameLength = 128

type SessionService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	credit      *CreditService
	tableRepo   *repository.TableRepository
	sessionRepo *repository.SessionRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSessionService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, credit *CreditService) *SessionService {
	return &SessionService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		credit:      credit,
		tableRepo:   repository.NewTableRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type OpenSessionRequest struct {
	TableID int64
	Date    *time.Time
	ActorID int64
}

// SeatCloseResult 关场时单个座位的结清结果
type SeatCloseResult struct {
	SeatNo       int    `json:"seat_no"`
	PlayerName   string `json:"player_name"`
	AmountClosed int64  `json:"amount_closed"`
}

// CloseSessionReport 关场报告，只包含有欠款的座位
type CloseSessionReport struct {
	SessionID   string            `json:"session_id"`
	ClosedAt    time.Time         `json:"closed_at"`
	Seats       []SeatCloseResult `json:"seats"`
	TotalClosed int64             `json:"total_closed"`
}

// SeatSummary 座位及其当前欠款
type SeatSummary struct {
	*model.Seat
	Outstanding int64 `json:"outstanding"`
}

type SessionDetail struct {
	Session *model.Session `json:"session"`
	Table   *model.Table   `json:"table,omitempty"`
	Seats   []SeatSummary  `json:"seats"`
}

// OpenSession 开场，一张赌台同时只能有一个进行中的场次
//
// 先拿赌台锁再在事务里检查，避免并发开场各自插入一个 open 场次
func (s *SessionService) OpenSession(ctx context.Context, req *OpenSessionRequest) (*model.Session, error) {
	tableLock, err := acquireTableLock(ctx, s.redisClient, s.cfg, req.TableID)
	if err != nil {
		return nil, err
	}
	defer tableLock.Unlock(ctx)

	var session *model.Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err := s.tableRepo.GetByID(ctx, tx, req.TableID)
		if err != nil {
			return err
		}

		existing, err := s.sessionRepo.GetOpenByTableID(ctx, tx, table.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrSessionAlreadyOpen
		}

		session = &model.Session{
			ID:        idgen.GenerateSessionID(),
			TableID:   table.ID,
			Date:      req.Date,
			Status:    model.SessionStatusOpen,
			CreatedBy: req.ActorID,
		}
		if err := s.sessionRepo.Create(ctx, tx, session); err != nil {
			return fmt.Errorf("创建场次失败: %w", err)
		}

		seatsCount := table.SeatsCount
		if seatsCount <= 0 {
			seatsCount = s.cfg.Business.DefaultSeatCount
		}
		seats := make([]*model.Seat, 0, seatsCount)
		for i := 1; i <= seatsCount; i++ {
			seats = append(seats, &model.Seat{SessionID: session.ID, SeatNo: i})
		}
		if err := s.sessionRepo.CreateSeats(ctx, tx, seats); err != nil {
			return fmt.Errorf("创建座位失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SessionService] 开场成功: session=%s, table=%d", session.ID, session.TableID)
	return session, nil
}

// CloseSession 关场：在一个事务里结清所有座位的全部欠款并把场次标记为 closed
func (s *SessionService) CloseSession(ctx context.Context, sessionID string, actorID int64) (*CloseSessionReport, error) {
	start := time.Now()

	sessionLock, err := acquireSessionLock(ctx, s.redisClient, s.cfg, sessionID)
	if err != nil {
		return nil, err
	}
	defer sessionLock.Unlock(ctx)

	report := &CloseSessionReport{SessionID: sessionID, Seats: []SeatCloseResult{}}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.sessionRepo.GetByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return ErrSessionAlreadyClosed
		}

		seats, err := s.sessionRepo.ListSeats(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("查询座位失败: %w", err)
		}

		store := repository.NewTxStore(tx)
		for _, seat := range seats {
			closed, err := s.credit.CloseCreditForSession(ctx, store, session, seat, actorID)
			if err != nil {
				return fmt.Errorf("结清座位 %d 欠款失败: %w", seat.SeatNo, err)
			}
			if closed == 0 {
				continue
			}
			report.Seats = append(report.Seats, SeatCloseResult{
				SeatNo:       seat.SeatNo,
				PlayerName:   seat.PlayerName,
				AmountClosed: closed,
			})
			report.TotalClosed += closed
		}

		report.ClosedAt = time.Now()
		if err := s.sessionRepo.MarkClosed(ctx, tx, sessionID, report.ClosedAt); err != nil {
			if errors.Is(err, repository.ErrSessionStatusInvalid) {
				return ErrSessionAlreadyClosed
			}
			return fmt.Errorf("更新场次状态失败: %w", err)
		}

		msg, err := newOutboxMessage(model.EventSessionClosed, s.cfg.Kafka.Topic.SessionClosed, sessionID, map[string]interface{}{
			"session_id":   sessionID,
			"table_id":     session.TableID,
			"actor_id":     actorID,
			"seats":        report.Seats,
			"total_closed": report.TotalClosed,
			"closed_at":    report.ClosedAt.Format(time.RFC3339),
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

	for _, r := range report.Seats {
		metrics.ObserveSettlement(metrics.SourceSessionClose, r.AmountClosed)
	}
	metrics.SessionCloseDuration.Observe(time.Since(start).Seconds())
	log.Printf("[SessionService] 关场成功: session=%s, seats_with_credit=%d, total_closed=%d",
		sessionID, len(report.Seats), report.TotalClosed)

	return report, nil
}

// SetPlayerName 登记座位上的玩家名称，传空字符串表示清除
func (s *SessionService) SetPlayerName(ctx context.Context, sessionID string, seatNo int, name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxPlayerNameLength {
		return ErrInvalidPlayerName
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.sessionRepo.GetSeat(ctx, tx, sessionID, seatNo); err != nil {
			return err
		}
		return s.sessionRepo.UpdatePlayerName(ctx, tx, sessionID, seatNo, name)
	})
}

// ListSeats 场次的全部座位，按座位号排序
func (s *SessionService) ListSeats(ctx context.Context, sessionID string) ([]*model.Seat, error) {
	if _, err := s.sessionRepo.GetByID(ctx, nil, sessionID); err != nil {
		return nil, err
	}
	return s.sessionRepo.ListSeats(ctx, nil, sessionID)
}

// GetSession 场次详情，附带每个座位的当前欠款
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{Session: session, Seats: []SeatSummary{}}

	table, err := s.tableRepo.GetByID(ctx, nil, session.TableID)
	if err != nil && !errors.Is(err, repository.ErrTableNotFound) {
		return nil, err
	}
	detail.Table = table

	seats, err := s.sessionRepo.ListSeats(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}

	store := repository.NewTxStore(s.db)
	for _, seat := range seats {
		purchases, err := s.credit.CreditPurchases(ctx, store, sessionID, seat.SeatNo)
		if err != nil {
			return nil, err
		}
		detail.Seats = append(detail.Seats, SeatSummary{Seat: seat, Outstanding: TotalCredit(purchases)})
	}
	return detail, nil
}

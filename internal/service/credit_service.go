package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"casinoledger/internal/config"
	"casinoledger/internal/model"
	"casinoledger/pkg/idgen"
)

// CreditStore 欠款结清使用的事务内存储句柄
//
// 所有方法都必须在同一个事务里执行，提交与回滚由调用方负责。
type CreditStore interface {
	// CreditPurchases 座位上 payment_type=credit 且 amount>0 的买码记录，顺序不保证
	CreditPurchases(ctx context.Context, sessionID string, seatNo int) ([]*model.ChipPurchase, error)
	DeletePurchase(ctx context.Context, id int64) error
	UpdatePurchaseAmount(ctx context.Context, id int64, amount int64) error
	CreateAdjustment(ctx context.Context, adj *model.CasinoBalanceAdjustment) error
	// TableByID 赌台不存在时返回 nil, nil
	TableByID(ctx context.Context, id int64) (*model.Table, error)
}

// CreditService 欠款汇总与结清
//
// 不持有任何状态，每次调用都从 store 重新读取当前记录。
type CreditService struct {
	cfg config.CreditConfig
}

func NewCreditService(cfg config.CreditConfig) *CreditService {
	return &CreditService{cfg: cfg.WithDefaults()}
}

// CreditPurchases 查询座位的有效欠款记录
func (s *CreditService) CreditPurchases(ctx context.Context, store CreditStore, sessionID string, seatNo int) ([]*model.ChipPurchase, error) {
	purchases, err := store.CreditPurchases(ctx, sessionID, seatNo)
	if err != nil {
		return nil, err
	}

	qualifying := make([]*model.ChipPurchase, 0, len(purchases))
	for _, p := range purchases {
		if p.IsOutstandingCredit() {
			qualifying = append(qualifying, p)
		}
	}
	return qualifying, nil
}

// TotalCredit 欠款合计
func TotalCredit(purchases []*model.ChipPurchase) int64 {
	var total int64
	for _, p := range purchases {
		total += p.Amount
	}
	return total
}

// DebtComment 生成余额调整备注
//
// 玩家名为空时用座位号代替，赌台查不到时用 UnknownTable，场次没有日期时日期为空
func (s *CreditService) DebtComment(session *model.Session, seat *model.Seat, table *model.Table) string {
	player := seat.PlayerName
	if player == "" {
		player = strings.ReplaceAll(s.cfg.SeatFallback, "{seat}", strconv.Itoa(seat.SeatNo))
	}

	tableName := s.cfg.UnknownTable
	if table != nil {
		tableName = table.Name
	}

	date := ""
	if session.Date != nil {
		date = session.Date.Format(s.cfg.DateLayout)
	}

	r := strings.NewReplacer("{player}", player, "{table}", tableName, "{date}", date)
	return strings.TrimSpace(r.Replace(s.cfg.CommentTemplate))
}

// CloseCredit 结清座位的一部分或全部欠款
//
// 先写入一条金额为 amountToClose 的余额调整，再按买码时间从早到晚核销：
// 整笔不超过剩余额度的删除，超过的那一笔扣减剩余额度后停止。
func (s *CreditService) CloseCredit(ctx context.Context, store CreditStore, session *model.Session, seat *model.Seat, amountToClose int64, actorID int64) (*model.CasinoBalanceAdjustment, error) {
	if amountToClose <= 0 {
		return nil, ErrInvalidAmount
	}

	purchases, err := s.CreditPurchases(ctx, store, session.ID, seat.SeatNo)
	if err != nil {
		return nil, fmt.Errorf("查询欠款记录失败: %w", err)
	}

	available := TotalCredit(purchases)
	if s.cfg.RejectOverSettlement && amountToClose > available {
		return nil, fmt.Errorf("%w: 结清 %d, 可用 %d", ErrAmountExceedsCredit, amountToClose, available)
	}

	table, err := store.TableByID(ctx, session.TableID)
	if err != nil {
		return nil, fmt.Errorf("查询赌台失败: %w", err)
	}

	adjustment := &model.CasinoBalanceAdjustment{
		AdjustmentNo:    idgen.GenerateAdjustmentNo(),
		Amount:          amountToClose,
		Comment:         s.DebtComment(session, seat, table),
		CreatedByUserID: actorID,
	}
	if err := store.CreateAdjustment(ctx, adjustment); err != nil {
		return nil, fmt.Errorf("写入余额调整失败: %w", err)
	}

	sort.SliceStable(purchases, func(i, j int) bool {
		if purchases[i].CreatedAt.Equal(purchases[j].CreatedAt) {
			return purchases[i].ID < purchases[j].ID
		}
		return purchases[i].CreatedAt.Before(purchases[j].CreatedAt)
	})

	remaining := amountToClose
	for _, p := range purchases {
		if remaining <= 0 {
			break
		}

		if p.Amount <= remaining {
			if err := store.DeletePurchase(ctx, p.ID); err != nil {
				return nil, fmt.Errorf("删除买码记录失败: id=%d: %w", p.ID, err)
			}
			remaining -= p.Amount
			continue
		}

		if err := store.UpdatePurchaseAmount(ctx, p.ID, p.Amount-remaining); err != nil {
			return nil, fmt.Errorf("扣减买码记录失败: id=%d: %w", p.ID, err)
		}
		remaining = 0
	}

	if remaining > 0 {
		log.Printf("[CreditService] 结清金额超过欠款: session=%s, seat=%d, amount=%d, uncovered=%d",
			session.ID, seat.SeatNo, amountToClose, remaining)
	}

	return adjustment, nil
}

// CloseCreditForSession 关闭场次时结清座位的全部欠款，返回结清金额
//
// 没有欠款时直接返回 0，不写任何记录。
func (s *CreditService) CloseCreditForSession(ctx context.Context, store CreditStore, session *model.Session, seat *model.Seat, actorID int64) (int64, error) {
	purchases, err := s.CreditPurchases(ctx, store, session.ID, seat.SeatNo)
	if err != nil {
		return 0, fmt.Errorf("查询欠款记录失败: %w", err)
	}

	total := TotalCredit(purchases)
	if total == 0 {
		return 0, nil
	}

	if _, err := s.CloseCredit(ctx, store, session, seat, total, actorID); err != nil {
		return 0, err
	}
	return total, nil
}

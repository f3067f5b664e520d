package repository

import (
	"context"
	"errors"
	"time"

	"casinoledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound      = errors.New("场次不存在")
	ErrSeatNotFound         = errors.New("座位不存在")
	ErrSessionStatusInvalid = errors.New("场次状态不合法")
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *SessionRepository) Create(ctx context.Context, tx *gorm.DB, session *model.Session) error {
	return r.conn(tx).WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Session, error) {
	var session model.Session
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetOpenByTableID 查询赌台当前未关闭的场次，没有时返回 nil
func (r *SessionRepository) GetOpenByTableID(ctx context.Context, tx *gorm.DB, tableID int64) (*model.Session, error) {
	var session model.Session
	err := r.conn(tx).WithContext(ctx).
		Where("table_id = ? AND status = ?", tableID, model.SessionStatusOpen).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// MarkClosed open -> closed，状态不是 open 时返回 ErrSessionStatusInvalid
func (r *SessionRepository) MarkClosed(ctx context.Context, tx *gorm.DB, id string, closedAt time.Time) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND status = ?", id, model.SessionStatusOpen).
		Updates(map[string]interface{}{
			"status":    model.SessionStatusClosed,
			"closed_at": closedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionStatusInvalid
	}
	return nil
}

func (r *SessionRepository) CreateSeats(ctx context.Context, tx *gorm.DB, seats []*model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Create(&seats).Error
}

func (r *SessionRepository) GetSeat(ctx context.Context, tx *gorm.DB, sessionID string, seatNo int) (*model.Seat, error) {
	var seat model.Seat
	err := r.conn(tx).WithContext(ctx).
		Where("session_id = ? AND seat_no = ?", sessionID, seatNo).
		First(&seat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &seat, nil
}

func (r *SessionRepository) ListSeats(ctx context.Context, tx *gorm.DB, sessionID string) ([]*model.Seat, error) {
	var seats []*model.Seat
	err := r.conn(tx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seat_no ASC").
		Find(&seats).Error
	return seats, err
}

// UpdatePlayerName 调用方需先确认座位存在（MySQL 对未变化的行 RowsAffected 为 0）
func (r *SessionRepository) UpdatePlayerName(ctx context.Context, tx *gorm.DB, sessionID string, seatNo int, name string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.Seat{}).
		Where("session_id = ? AND seat_no = ?", sessionID, seatNo).
		Update("player_name", name).Error
}

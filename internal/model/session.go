package model

import (
	"time"
)

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// Session 一场牌局（某张赌台在某一天的营业场次）
type Session struct {
	ID        string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	TableID   int64      `gorm:"index;not null" json:"table_id"`
	Date      *time.Time `gorm:"type:date" json:"date"`
	Status    string     `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedBy int64      `gorm:"not null" json:"created_by"`
	ClosedAt  *time.Time `json:"closed_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Session) TableName() string {
	return "table_session"
}

func (s *Session) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// Seat 座位，属于某一场牌局
type Seat struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string `gorm:"type:varchar(64);uniqueIndex:idx_seat_session_no;not null" json:"session_id"`
	SeatNo     int    `gorm:"uniqueIndex:idx_seat_session_no;not null" json:"seat_no"`
	PlayerName string `gorm:"type:varchar(128)" json:"player_name"` // 为空表示未登记玩家
}

func (Seat) TableName() string {
	return "session_seat"
}

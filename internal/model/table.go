package model

import (
	"time"
)

// Table 赌台
type Table struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	SeatsCount int       `gorm:"not null" json:"seats_count"` // 0 表示使用 business.default_seat_count
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Table) TableName() string {
	return "casino_table"
}

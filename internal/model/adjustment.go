package model

import (
	"time"
)

// CasinoBalanceAdjustment 赌场余额调整
//
// 只追加，不修改，不删除。
// Amount 为正表示赌场收入（如收回欠款），为负表示支出。
type CasinoBalanceAdjustment struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AdjustmentNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"adjustment_no"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Comment         string    `gorm:"type:varchar(512);not null" json:"comment"`
	CreatedByUserID int64     `gorm:"index;not null" json:"created_by_user_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CasinoBalanceAdjustment) TableName() string {
	return "casino_balance_adjustment"
}

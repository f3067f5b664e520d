package model

import (
	"time"
)

const (
	PaymentTypeCash   = "cash"
	PaymentTypeCredit = "credit"
)

var ValidPaymentTypes = []string{PaymentTypeCash, PaymentTypeCredit}

func IsValidPaymentType(paymentType string) bool {
	for _, t := range ValidPaymentTypes {
		if t == paymentType {
			return true
		}
	}
	return false
}

// ChipPurchase 买码记录
//
// PaymentType = credit 且 Amount > 0 的记录构成座位的未结欠款。
// 结清时由 CreditService 删除或减少金额，其余情况下不修改。
type ChipPurchase struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   string    `gorm:"type:varchar(64);index:idx_purchase_session_seat;not null" json:"session_id"`
	SeatNo      int       `gorm:"index:idx_purchase_session_seat;not null" json:"seat_no"`
	PaymentType string    `gorm:"type:varchar(20);not null" json:"payment_type"`
	Amount      int64     `gorm:"not null" json:"amount"` // 筹码数，可为负
	CreatedBy   int64     `gorm:"not null;default:0" json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ChipPurchase) TableName() string {
	return "chip_purchase"
}

func (p *ChipPurchase) IsOutstandingCredit() bool {
	return p.PaymentType == PaymentTypeCredit && p.Amount > 0
}

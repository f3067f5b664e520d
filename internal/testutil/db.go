// Package testutil 测试用的数据库与 Redis 环境
package testutil

import (
	"fmt"
	"testing"
	"time"

	"casinoledger/internal/infrastructure/database"
	"casinoledger/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试一个独立的内存 SQLite 库
//
// 只开一个连接：事务内的所有语句必须走 tx，否则会互相等待
func NewDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// NewRedis 基于 miniredis 的客户端
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// Fixture 一张赌台和一场已开的牌局
type Fixture struct {
	Table   *model.Table
	Session *model.Session
	Seats   []*model.Seat
}

// SeedSession 建一张赌台和一个 open 场次，座位号 1..seats
func SeedSession(t *testing.T, db *gorm.DB, tableName string, date time.Time, seats int) *Fixture {
	table := &model.Table{Name: tableName, SeatsCount: seats}
	require.NoError(t, db.Create(table).Error)

	session := &model.Session{
		ID:      uuid.NewString(),
		TableID: table.ID,
		Date:    &date,
		Status:  model.SessionStatusOpen,
	}
	require.NoError(t, db.Create(session).Error)

	fx := &Fixture{Table: table, Session: session}
	for i := 1; i <= seats; i++ {
		seat := &model.Seat{SessionID: session.ID, SeatNo: i}
		require.NoError(t, db.Create(seat).Error)
		fx.Seats = append(fx.Seats, seat)
	}
	return fx
}

// AddPurchase 写入一条指定时间的买码记录
func AddPurchase(t *testing.T, db *gorm.DB, sessionID string, seatNo int, paymentType string, amount int64, at time.Time) *model.ChipPurchase {
	p := &model.ChipPurchase{
		SessionID:   sessionID,
		SeatNo:      seatNo,
		PaymentType: paymentType,
		Amount:      amount,
		CreatedAt:   at,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// OutstandingCredit 直接从库里汇总座位欠款
func OutstandingCredit(t *testing.T, db *gorm.DB, sessionID string, seatNo int) int64 {
	var total int64
	err := db.Model(&model.ChipPurchase{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("session_id = ? AND seat_no = ? AND payment_type = ? AND amount > 0",
			sessionID, seatNo, model.PaymentTypeCredit).
		Scan(&total).Error
	require.NoError(t, err)
	return total
}

// CountAdjustments 余额调整记录条数
func CountAdjustments(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&model.CasinoBalanceAdjustment{}).Count(&n).Error)
	return n
}

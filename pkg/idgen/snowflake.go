package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//
// 场次号与余额调整单号都由它生成：全局唯一、趋势递增、不暴露业务量
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
	clock     func() int64 // 毫秒时间戳
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// NewSnowflake 创建独立的生成器
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间", maxWorkerID)
	}
	return &Snowflake{
		workerID: workerID,
		clock:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Init 初始化默认ID生成器
func Init(workerID int64) {
	once.Do(func() {
		g, err := NewSnowflake(workerID)
		if err != nil {
			log.Fatalf("初始化 ID 生成器失败: %v", err)
		}
		defaultGenerator = g
	})
}

// NextID 生成下一个ID
func NextID() int64 {
	Init(1) // 未显式初始化时使用 workerID = 1
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()

	// 时钟回拨：等到追上上一次发号的时间，否则会生成重复ID
	if now < s.timestamp {
		log.Printf("[IDGen] 时钟回拨 %dms，等待追平", s.timestamp-now)
		for now < s.timestamp {
			time.Sleep(time.Millisecond)
			now = s.clock()
		}
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = s.clock()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateSessionID 场次号，格式：SES + 雪花ID
func GenerateSessionID() string {
	return fmt.Sprintf("SES%d", NextID())
}

// GenerateAdjustmentNo 余额调整单号，格式：ADJ + 年月日时分秒 + 雪花ID
//
// 使用完整雪花ID，同一秒内大量结清也不会撞号
func GenerateAdjustmentNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("ADJ%s%d", timestamp, id)
}

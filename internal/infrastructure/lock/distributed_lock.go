package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 结清欠款会删除或修改同一座位的买码记录，必须保证同一座位同一时刻只有一个写入方：
//
//   请求1: 读取欠款=100 -> 结清60 -> 剩余40
//   请求2: 读取欠款=100 -> 结清60 -> 剩余40   两条调整记录，实际只收回一次
//
// 加锁：SET key value NX EX ttl
// 解锁：Lua 脚本比较 value 后删除，避免误删他人持有的锁
//
// 锁粒度为场次 credit:lock:session:{session}：
// 关闭场次会遍历全部座位，手动部分结清也取同一把锁，两者不会交叉执行。
// 不同场次的座位记录互不相交，可以并发结清。
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 持有者标识
	expiration time.Duration // 过期时间，防止持有者崩溃后死锁
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，只删除自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	_, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	return err
}

// NewTableLock 赌台锁，保证同一张赌台同时只开一个场次
func NewTableLock(client *redis.Client, tableID int64, owner string, ttl time.Duration) *DistributedLock {
	key := fmt.Sprintf("credit:lock:table:%d", tableID)
	return NewDistributedLock(client, key, owner, ttl)
}

// NewSessionLock 场次锁
func NewSessionLock(client *redis.Client, sessionID, owner string, ttl time.Duration) *DistributedLock {
	key := fmt.Sprintf("credit:lock:session:%s", sessionID)
	return NewDistributedLock(client, key, owner, ttl)
}

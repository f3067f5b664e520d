package job

import (
	"context"
	"log"
	"time"

	"casinoledger/internal/config"
	"casinoledger/internal/infrastructure/metrics"
	"casinoledger/internal/model"
	"casinoledger/internal/repository"

	"gorm.io/gorm"
)

// Publisher 消息投递端，由 mq.Publisher 实现
type Publisher interface {
	Send(topic, key, value string) error
}

// OutboxSender 把结清与关场事件从本地消息表投递到 Kafka
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

// RequeueFailed 把超过重试次数的消息放回队列，返回放回条数
func (s *OutboxSender) RequeueFailed(ctx context.Context) (int, error) {
	messages, err := s.outboxRepo.GetFailedMessages(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	for _, msg := range messages {
		if err := s.outboxRepo.Requeue(ctx, msg.ID); err != nil {
			return 0, err
		}
		log.Printf("[OutboxSender] 消息重新入队: id=%d, event=%s, key=%s", msg.ID, msg.EventType, msg.MessageKey)
	}
	return len(messages), nil
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Send(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		metrics.OutboxMessages.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[OutboxSender] 消息发送成功: id=%d, event=%s, key=%s", msg.ID, msg.EventType, msg.MessageKey)
		}
		return true
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, err=%v", msg.ID, err)

	giveUp := msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount
	if giveUp {
		metrics.OutboxMessages.WithLabelValues("failed").Inc()
	} else {
		metrics.OutboxMessages.WithLabelValues("retry").Inc()
	}

	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, giveUp); err != nil {
		log.Printf("[OutboxSender] 记录失败次数失败: id=%d, err=%v", msg.ID, err)
	} else if giveUp {
		log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
	}
	return false
}

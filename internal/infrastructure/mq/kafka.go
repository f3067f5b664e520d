package mq

import (
	"log"

	"casinoledger/internal/config"

	"github.com/IBM/sarama"
)

// NewProducerConfig 生产者配置，结清事件不允许丢失
func NewProducerConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true // SyncProducer 必须开启
	return kafkaConfig
}

// InitKafka 初始化 Kafka 生产者
func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}

	log.Printf("Kafka 生产者创建成功: brokers=%v", cfg.Brokers)
	return producer
}

// Publisher 把 outbox 消息投递到 Kafka
type Publisher struct {
	producer sarama.SyncProducer
}

func NewPublisher(producer sarama.SyncProducer) *Publisher {
	return &Publisher{producer: producer}
}

// Send 同步发送一条消息
func (p *Publisher) Send(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close 关闭底层生产者
func (p *Publisher) Close() {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			log.Printf("[Kafka] 关闭生产者失败: %v", err)
		}
	}
}

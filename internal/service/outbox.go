package service

import (
	"encoding/json"
	"fmt"

	"casinoledger/internal/model"
)

func newOutboxMessage(eventType, topic, key string, payload interface{}) (*model.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化消息失败: %w", err)
	}
	return &model.OutboxMessage{
		MessageKey: key,
		EventType:  eventType,
		Topic:      topic,
		Payload:    string(body),
		Status:     model.OutboxStatusPending,
	}, nil
}

package kafka

import (
	"context"
	"encoding/json"

	"ShopChat/models"

	"github.com/IBM/sarama"
	"github.com/labstack/gommon/log"
)

// Producer publishes lifecycle events keyed by chat id.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Logger
}

func NewProducer(brokers []string, topic string, sc *sarama.Config, logger *log.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(producer, topic, logger), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(producer sarama.SyncProducer, topic string, logger *log.Logger) *Producer {
	if logger == nil {
		logger = log.New("kafka")
	}
	return &Producer{producer: producer, topic: topic, logger: logger}
}

// Publish sends ev synchronously. ctx is not consulted by the sync
// producer; a stopped client simply abandons the call.
func (p *Producer) Publish(_ context.Context, ev models.LifecycleEvent) error {

	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.ChatID),
		Value: sarama.ByteEncoder(value),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Errorf("failed to publish %s of chat %s: %v", ev.Kind, ev.ChatID, err)
		return err
	}

	p.logger.Debugf("%s of chat %s at partition %d offset %d", ev.Kind, ev.ChatID, partition, offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

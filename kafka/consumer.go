package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/labstack/gommon/log"
)

// MessageHandler processes one consumed record.
type MessageHandler interface {
	Handle(ctx context.Context, message *sarama.ConsumerMessage) error
}

type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       MessageHandler
	logger        *log.Logger
}

func NewConsumer(brokers []string, groupID string, topics []string,
	sc *sarama.Config, handler MessageHandler, logger *log.Logger) (*Consumer, error) {
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, sc)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("kafka")
	}

	return &Consumer{
		consumerGroup: consumerGroup,
		topics:        topics,
		handler:       handler,
		logger:        logger,
	}, nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := c.handler.Handle(session.Context(), message); err != nil {
			c.logger.Warnf("failed to process record at %s/%d/%d: %v", message.Topic, message.Partition, message.Offset, err)
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// Start consumes until ctx is done or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Errorf("consumer group: %v", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Errorf("consume: %v", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumerGroup.Close()
}

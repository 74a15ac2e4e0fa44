package kafka

import (
	"github.com/IBM/sarama"
)

const (
	headerSchema = "schema"
	schemaName   = "shopchat.lifecycle.v1"
)

// LifecycleInterceptor stamps every outgoing record with the payload schema
// so the audit consumer can skip foreign records on a shared topic.
type LifecycleInterceptor struct{}

func NewLifecycleInterceptor() *LifecycleInterceptor {
	return &LifecycleInterceptor{}
}

func (i *LifecycleInterceptor) OnSend(msg *sarama.ProducerMessage) {
	for _, h := range msg.Headers {
		if string(h.Key) == headerSchema {
			return
		}
	}
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte(headerSchema),
		Value: []byte(schemaName),
	})
}

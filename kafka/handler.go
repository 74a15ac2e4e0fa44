package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ShopChat/models"

	"github.com/IBM/sarama"
)

// AuditHandler prints every lifecycle record it consumes as one line.
type AuditHandler struct {
	out io.Writer
}

func NewAuditHandler(out io.Writer) *AuditHandler {
	return &AuditHandler{out: out}
}

func (h *AuditHandler) Handle(_ context.Context, message *sarama.ConsumerMessage) error {
	if !isLifecycle(message) {
		return nil
	}

	var ev models.LifecycleEvent
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	if ev.ChatID == "" || ev.Kind == "" {
		return fmt.Errorf("%w: lifecycle record without chat_id or kind", models.ErrMalformedPayload)
	}

	_, err := fmt.Fprintf(h.out, "%s %-7s chat=%s role=%s\n", ev.At.Format(time.RFC3339), ev.Kind, ev.ChatID, ev.Role)
	return err
}

func isLifecycle(message *sarama.ConsumerMessage) bool {
	for _, h := range message.Headers {
		if h != nil && string(h.Key) == headerSchema {
			return string(h.Value) == schemaName
		}
	}
	// records from producers that predate the header
	return true
}

package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ShopChat/config"
	"ShopChat/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSaramaConfigMechanisms(t *testing.T) {
	tests := []struct {
		mechanism string
		want      sarama.SASLMechanism
		scram     bool
	}{
		{"", sarama.SASLTypePlaintext, false},
		{"PLAIN", sarama.SASLTypePlaintext, false},
		{"SCRAM-SHA-256", sarama.SASLTypeSCRAMSHA256, true},
		{"SCRAM-SHA-512", sarama.SASLTypeSCRAMSHA512, true},
	}
	for _, tt := range tests {
		t.Run(tt.mechanism, func(t *testing.T) {
			sc, err := NewSaramaConfig(&config.KafkaConfig{Username: "u", Password: "p", Mechanism: tt.mechanism})
			require.NoError(t, err)
			assert.True(t, sc.Net.SASL.Enable)
			assert.Equal(t, tt.want, sc.Net.SASL.Mechanism)
			if tt.scram {
				client := sc.Net.SASL.SCRAMClientGeneratorFunc()
				require.NoError(t, client.Begin("u", "p", ""))
				assert.False(t, client.Done())
			}
		})
	}

	_, err := NewSaramaConfig(&config.KafkaConfig{Username: "u", Password: "p", Mechanism: "GSSAPI-ish"})
	assert.Error(t, err)

	sc, err := NewSaramaConfig(&config.KafkaConfig{})
	require.NoError(t, err)
	assert.False(t, sc.Net.SASL.Enable)

	_, err = NewSaramaConfig(&config.KafkaConfig{UseTLS: true, CAFile: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}

func TestInterceptorStampsSchemaOnce(t *testing.T) {
	msg := &sarama.ProducerMessage{Topic: "t"}
	i := NewLifecycleInterceptor()
	i.OnSend(msg)
	i.OnSend(msg)

	require.Len(t, msg.Headers, 1)
	assert.Equal(t, schemaName, string(msg.Headers[0].Value))
}

func TestProducerPublish(t *testing.T) {
	sc := mocks.NewTestConfig()
	sc.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, sc)

	ev := models.LifecycleEvent{Kind: models.LifecycleCreated, ChatID: "c1", Role: models.RoleUser, At: time.Unix(1700000000, 0).UTC()}
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got models.LifecycleEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Kind != ev.Kind || got.ChatID != ev.ChatID || got.Role != ev.Role || !got.At.Equal(ev.At) {
			return errors.New("unexpected payload")
		}
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(sp, "chat-lifecycle", nil)
	require.NoError(t, p.Publish(context.Background(), ev))
	assert.ErrorIs(t, p.Publish(context.Background(), ev), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestAuditHandler(t *testing.T) {
	var out bytes.Buffer
	h := NewAuditHandler(&out)
	ctx := context.Background()

	value, err := json.Marshal(models.LifecycleEvent{Kind: models.LifecycleClosed, ChatID: "c1", Role: models.RoleAdmin, At: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	stamped := []*sarama.RecordHeader{{Key: []byte(headerSchema), Value: []byte(schemaName)}}

	require.NoError(t, h.Handle(ctx, &sarama.ConsumerMessage{Value: value, Headers: stamped}))
	assert.Equal(t, "2024-05-01T12:00:00Z closed  chat=c1 role=admin\n", out.String())

	foreign := []*sarama.RecordHeader{{Key: []byte(headerSchema), Value: []byte("orders.v3")}}
	require.NoError(t, h.Handle(ctx, &sarama.ConsumerMessage{Value: []byte("{}"), Headers: foreign}))

	err = h.Handle(ctx, &sarama.ConsumerMessage{Value: []byte("not json")})
	assert.ErrorIs(t, err, models.ErrMalformedPayload)
	err = h.Handle(ctx, &sarama.ConsumerMessage{Value: []byte(`{"kind":"created"}`)})
	assert.ErrorIs(t, err, models.ErrMalformedPayload)
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("\n")))
}

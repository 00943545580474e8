package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher streams audit events to an external sink. The durable trail lives
// in the store; streaming exists for downstream compliance consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// streamPayload is the JSON structure written to the stream. Notes stay
// encrypted; the stream never carries plaintext.
type streamPayload struct {
	ID            string `json:"id"`
	RecordID      string `json:"record_id"`
	UserID        string `json:"user_id"`
	Sequence      int64  `json:"sequence"`
	Action        string `json:"action"`
	Timestamp     string `json:"timestamp"`
	DeviceName    string `json:"device_name,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	EncryptedNote string `json:"encrypted_note,omitempty"`
	// Payload is already JSON; it is embedded rather than re-encoded.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// KafkaPublisher writes events to a Kafka topic, keyed by record ID so one
// record's trail stays in order within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	_, err = admin.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil && !isTopicExists(err) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %q: %w", topic, err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func isTopicExists(err error) bool {
	// kadm surfaces TOPIC_ALREADY_EXISTS in the error text; idempotent setup
	// only needs to not fail on it.
	return err != nil &&
		(strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") || strings.Contains(err.Error(), "already exists"))
}

// Publish writes one event synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload := streamPayload{
		ID:            uuid.UUID(event.ID).String(),
		RecordID:      uuid.UUID(event.RecordID).String(),
		UserID:        uuid.UUID(event.UserID).String(),
		Sequence:      event.Sequence,
		Action:        string(event.Action),
		Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
		DeviceName:    event.DeviceName,
		RequestID:     event.RequestID,
		EncryptedNote: event.EncryptedNote,
	}
	if event.Payload != "" {
		payload.Payload = json.RawMessage(event.Payload)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stream payload: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.RecordID.String()),
		Value: raw,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

// mockKafkaWriter records written messages.
type mockKafkaWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	writeErr error
	closed   bool
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaWriter) messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.written...)
}

func newTestProducer(w messageSink) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64}, logging.NewNopLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     ProducerConfig
		wantErr bool
	}{
		{"valid", ProducerConfig{Brokers: []string{"b:9092"}}, false},
		{"no brokers", ProducerConfig{}, true},
		{"negative retries", ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}, true},
		{"bad acks", ProducerConfig{Brokers: []string{"b:9092"}, Acks: "most"}, true},
		{"bad codec", ProducerConfig{Brokers: []string{"b:9092"}, CompressionCodec: "brotli"}, true},
		{"sasl without credentials", ProducerConfig{Brokers: []string{"b:9092"}, SecurityConfig: SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN"}}, true},
		{"unknown sasl mechanism", ProducerConfig{Brokers: []string{"b:9092"}, SecurityConfig: SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}}, true},
		{"scram", ProducerConfig{Brokers: []string{"b:9092"}, SecurityConfig: SecurityConfig{SASLEnabled: true, SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"}}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateProducerConfig(tt.cfg)
			if tt.wantErr {
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewProducer_BuildsWriter(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Acks: "all", CompressionCodec: "zstd"}, logging.NewNopLogger())
	require.NoError(t, err)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, kafka.Zstd, w.Compression)
	assert.Equal(t, 4, w.MaxAttempts)
}

func TestNewProducer_MissingCABundle(t *testing.T) {
	_, err := NewProducer(ProducerConfig{
		Brokers:        []string{"localhost:9092"},
		SecurityConfig: SecurityConfig{TLSEnabled: true, TLSCertPath: "/nonexistent/ca.pem"},
	}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &common.ProducerMessage{
		Topic:   "t",
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{"event_type": "molecule.parsed"},
	})
	require.NoError(t, err)

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "t", msgs[0].Topic)
	assert.Equal(t, []byte("k"), msgs[0].Key)
	assert.False(t, msgs[0].Time.IsZero())
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, "event_type", msgs[0].Headers[0].Key)

	sent, failed, bytes := p.GetMetrics()
	assert.Equal(t, int64(1), sent)
	assert.Zero(t, failed)
	assert.Equal(t, int64(1), bytes)
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.True(t, apperrors.IsCode(p.Publish(ctx, &common.ProducerMessage{Value: []byte("v")}), apperrors.ErrCodeValidation))
	assert.True(t, apperrors.IsCode(p.Publish(ctx, &common.ProducerMessage{Topic: "t"}), apperrors.ErrCodeValidation))
	big := &common.ProducerMessage{Topic: "t", Value: []byte(strings.Repeat("x", 65))}
	assert.True(t, apperrors.IsCode(p.Publish(ctx, big), apperrors.ErrCodePayloadTooLarge))
}

func TestPublish_WriteError(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{writeErr: errors.New("leader not available")})

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMessageQueueError))
	_, failed, _ := p.GetMetrics()
	assert.Equal(t, int64(1), failed)
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

//Personal.AI order the ending

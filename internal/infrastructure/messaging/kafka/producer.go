package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeServiceUnavailable, "producer closed")

// ProducerConfig configures the synchronous Producer.  Acks is one of
// none, one (default) or all; CompressionCodec one of gzip, snappy, lz4
// or zstd.
type ProducerConfig struct {
	Brokers          []string      `mapstructure:"brokers"`
	Acks             string        `mapstructure:"acks"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BatchSize        int           `mapstructure:"batch_size"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
	MaxMessageBytes  int           `mapstructure:"max_message_bytes"`
	CompressionCodec string        `mapstructure:"compression"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	SecurityConfig   `mapstructure:",squash"`
}

func (cfg ProducerConfig) withDefaults() ProducerConfig {
	cfg.MaxRetries = positive(cfg.MaxRetries, 3)
	cfg.BatchSize = positive(cfg.BatchSize, 100)
	cfg.BatchTimeout = positive(cfg.BatchTimeout, 10*time.Millisecond)
	cfg.MaxMessageBytes = positive(cfg.MaxMessageBytes, 1<<20)
	cfg.WriteTimeout = positive(cfg.WriteTimeout, 10*time.Second)
	return cfg
}

var (
	acksByName = map[string]kafka.RequiredAcks{
		"none": kafka.RequireNone,
		"one":  kafka.RequireOne,
		"all":  kafka.RequireAll,
	}
	codecByName = map[string]kafka.Compression{
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	}
)

// messageSink is the part of *kafka.Writer the producer drives.
type messageSink interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes one message at a time and waits for the acknowledgement
// configured by Acks.
type Producer struct {
	writer messageSink
	cfg    ProducerConfig
	logger logging.Logger
	closed atomic.Bool

	sent, failed, bytes atomic.Int64
}

// NewProducer creates a Producer.  Brokers are not contacted until the
// first Publish.
func NewProducer(cfg ProducerConfig, logger logging.Logger) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, err
	}
	mech, err := cfg.saslMechanism()
	if err != nil {
		return nil, err
	}
	acks, ok := acksByName[cfg.Acks]
	if !ok {
		acks = kafka.RequireOne
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: acks,
		Compression:  codecByName[cfg.CompressionCodec],
		Transport:    &kafka.Transport{DialTimeout: 10 * time.Second, TLS: tlsCfg, SASL: mech},
	}
	return newProducerWithWriter(w, cfg, logger), nil
}

func newProducerWithWriter(w messageSink, cfg ProducerConfig, logger logging.Logger) *Producer {
	return &Producer{writer: w, cfg: cfg.withDefaults(), logger: logger}
}

func (p *Producer) check(msg *common.ProducerMessage) error {
	switch {
	case p.closed.Load():
		return ErrProducerClosed
	case msg.Topic == "":
		return errors.New(errors.ErrCodeValidation, "topic required")
	case len(msg.Value) == 0:
		return errors.New(errors.ErrCodeValidation, "value required")
	case len(msg.Value) > p.cfg.MaxMessageBytes:
		return errors.New(errors.ErrCodePayloadTooLarge, "message too large").
			WithDetail(msg.Topic)
	}
	return nil
}

// Publish writes msg and blocks until the broker acknowledges it.
func (p *Producer) Publish(ctx context.Context, msg *common.ProducerMessage) error {
	if err := p.check(msg); err != nil {
		return err
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.CodeMessageQueueError, "publish failed").WithDetail(msg.Topic)
	}
	p.sent.Add(1)
	p.bytes.Add(int64(len(msg.Value)))

	p.logger.Debug("Message published",
		logging.String("topic", msg.Topic),
		logging.Duration("took", time.Since(start)))
	return nil
}

// GetMetrics returns sent and failed message counts and the payload bytes
// sent.
func (p *Producer) GetMetrics() (sent, failed, bytes int64) {
	return p.sent.Load(), p.failed.Load(), p.bytes.Load()
}

// Close flushes the writer.  Later publishes return ErrProducerClosed.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}

func toKafkaMessage(msg *common.ProducerMessage) kafka.Message {
	m := kafka.Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value, Time: msg.Timestamp}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	for k, v := range msg.Headers {
		m.Headers = append(m.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return m
}

// ValidateProducerConfig checks the required fields.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max_retries must be >= 0")
	}
	if _, ok := acksByName[cfg.Acks]; cfg.Acks != "" && !ok {
		return errors.New(errors.ErrCodeValidation, "invalid acks").WithDetail(cfg.Acks)
	}
	if _, ok := codecByName[cfg.CompressionCodec]; cfg.CompressionCodec != "" && !ok {
		return errors.New(errors.ErrCodeValidation, "unsupported compression").WithDetail(cfg.CompressionCodec)
	}
	return cfg.SecurityConfig.validate()
}

//Personal.AI order the ending

package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

// ErrAlreadyRunning is returned by Start on a running consumer.
var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Dead-letter headers added on top of the original message headers.
const (
	headerOriginalTopic = "original_topic"
	headerErrorMessage  = "error_message"
)

// RetryConfig bounds redelivery of a failing message before it is parked
// on DeadLetterTopic.
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
}

// ConsumerConfig configures a consumer group member.
type ConsumerConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	Topics            []string      `mapstructure:"topics"`
	AutoOffsetReset   string        `mapstructure:"auto_offset_reset"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
	FetchMaxBytes     int           `mapstructure:"fetch_max_bytes"`
	HandlerTimeout    time.Duration `mapstructure:"handler_timeout"`
	Retry             RetryConfig   `mapstructure:"retry"`
	SecurityConfig    `mapstructure:",squash"`
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	cfg.SessionTimeout = positive(cfg.SessionTimeout, 30*time.Second)
	cfg.HeartbeatInterval = positive(cfg.HeartbeatInterval, 3*time.Second)
	cfg.MaxWait = positive(cfg.MaxWait, time.Second)
	cfg.FetchMaxBytes = positive(cfg.FetchMaxBytes, 10<<20)
	cfg.HandlerTimeout = positive(cfg.HandlerTimeout, 5*time.Minute)
	cfg.Retry.MaxRetries = positive(cfg.Retry.MaxRetries, 3)
	cfg.Retry.RetryBackoff = positive(cfg.Retry.RetryBackoff, time.Second)
	cfg.Retry.MaxRetryBackoff = positive(cfg.Retry.MaxRetryBackoff, 30*time.Second)
	return cfg
}

func positive[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// messageSource is the part of *kafka.Reader the consumer drives.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends dead-lettered messages.
type Publisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
	Close() error
}

type consumerStats struct {
	fetched, processed, retried, failed, parked atomic.Int64
}

// Consumer reads a consumer group's topics and hands each message to the
// handler subscribed to its topic.  An offset is committed once the handler
// succeeds or the message has been given up on.
type Consumer struct {
	src    messageSource
	cfg    ConsumerConfig
	logger logging.Logger

	mu     sync.RWMutex
	routes map[string]common.MessageHandler

	retryable func(error) bool
	dlq       Publisher
	stats     consumerStats

	running atomic.Bool
	stop    context.CancelFunc
	done    chan struct{}
}

// ConsumerOption customises a Consumer.
type ConsumerOption func(*Consumer)

// WithRetryClassifier overrides which handler errors are retried.  Errors
// for which fn returns false are dead-lettered after the first attempt.
func WithRetryClassifier(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) { c.retryable = fn }
}

// WithDeadLetterPublisher replaces the dead-letter producer.
func WithDeadLetterPublisher(p Publisher) ConsumerOption {
	return func(c *Consumer) { c.dlq = p }
}

// NewConsumer joins cfg.GroupID through a kafka.Reader.  When a dead-letter
// topic is configured and no publisher was supplied, a Producer on the same
// brokers is created for it.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
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

	start := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       cfg.Topics,
		MaxBytes:          cfg.FetchMaxBytes,
		MaxWait:           cfg.MaxWait,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       start,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			TLS:           tlsCfg,
			SASLMechanism: mech,
		},
	})

	c := newConsumerWithReader(reader, cfg, logger, opts...)
	if c.dlq == nil && cfg.Retry.DeadLetterTopic != "" {
		if c.dlq, err = NewProducer(ProducerConfig{Brokers: cfg.Brokers, SecurityConfig: cfg.SecurityConfig}, logger); err != nil {
			_ = reader.Close()
			return nil, err
		}
	}
	return c, nil
}

func newConsumerWithReader(src messageSource, cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		src:       src,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		routes:    make(map[string]common.MessageHandler),
		retryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe routes topic to handler, replacing any earlier handler.
func (c *Consumer) Subscribe(topic string, handler common.MessageHandler) {
	c.mu.Lock()
	c.routes[topic] = handler
	c.mu.Unlock()
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
}

func (c *Consumer) route(topic string) (common.MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.routes[topic]
	return h, ok
}

// Start runs the fetch loop in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, c.stop = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)

	c.logger.Info("Kafka consumer started", logging.String("group", c.cfg.GroupID))
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	for {
		m, ok := c.fetch(ctx)
		if !ok {
			return
		}
		if !c.dispatch(ctx, m) {
			// Cancelled mid-retry; the uncommitted offset is redelivered.
			return
		}
		if err := c.src.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("CommitMessages failed", logging.Err(err), logging.Int64("offset", m.Offset))
		}
	}
}

// fetch blocks for the next message, pausing a second after broker errors.
// It reports false once ctx is done.
func (c *Consumer) fetch(ctx context.Context) (kafka.Message, bool) {
	for {
		m, err := c.src.FetchMessage(ctx)
		if err == nil {
			c.stats.fetched.Add(1)
			return m, true
		}
		if ctx.Err() != nil {
			return kafka.Message{}, false
		}
		c.logger.Error("FetchMessage error", logging.Err(err))
		select {
		case <-ctx.Done():
			return kafka.Message{}, false
		case <-time.After(time.Second):
		}
	}
}

// dispatch reports false only when ctx was cancelled before the message
// reached a final outcome.
func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) bool {
	handler, ok := c.route(m.Topic)
	if !ok {
		c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
		return true
	}

	msg := fromKafkaMessage(m)
	err := c.attempt(ctx, handler, msg)
	wait := c.cfg.Retry.RetryBackoff
	for n := 0; err != nil && n < c.cfg.Retry.MaxRetries && c.retryable(err); n++ {
		c.stats.retried.Add(1)
		if !sleepCtx(ctx, wait) {
			return false
		}
		wait = min(2*wait, c.cfg.Retry.MaxRetryBackoff)
		err = c.attempt(ctx, handler, msg)
	}

	switch {
	case err == nil:
		c.stats.processed.Add(1)
		return true
	case ctx.Err() != nil:
		return false
	}

	c.stats.failed.Add(1)
	c.logger.Error("Message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.String(logging.FieldErrorCode, string(errors.GetCode(err))),
		logging.Err(err))
	c.park(ctx, msg, err)
	return true
}

func (c *Consumer) attempt(ctx context.Context, handler common.MessageHandler, msg *common.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()
	return handler(ctx, msg)
}

// park forwards a failed message to the dead-letter topic.  A publish
// failure is logged and the message is dropped.
func (c *Consumer) park(ctx context.Context, msg *common.Message, cause error) {
	topic := c.cfg.Retry.DeadLetterTopic
	if c.dlq == nil || topic == "" {
		return
	}
	headers := make(map[string]string, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[headerOriginalTopic] = msg.Topic
	headers[headerErrorMessage] = cause.Error()

	err := c.dlq.Publish(ctx, &common.ProducerMessage{Topic: topic, Key: msg.Key, Value: msg.Value, Headers: headers})
	if err != nil {
		c.logger.Error("Failed to send to dead letter topic", logging.String("topic", topic), logging.Err(err))
		return
	}
	c.stats.parked.Add(1)
}

func fromKafkaMessage(m kafka.Message) *common.Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &common.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   headers,
		Timestamp: m.Time,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stats returns processed, failed and dead-lettered counts.
func (c *Consumer) Stats() (processed, failed, deadLettered int64) {
	return c.stats.processed.Load(), c.stats.failed.Load(), c.stats.parked.Load()
}

// Close stops the loop, waits for the in-flight message and closes the
// reader and the dead-letter producer.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.stop()
	<-c.done

	err := c.src.Close()
	if c.dlq != nil {
		if dlErr := c.dlq.Close(); dlErr != nil {
			c.logger.Warn("failed to close dead letter producer", logging.Err(dlErr))
		}
	}
	c.logger.Info("Kafka consumer closed",
		logging.Int64("fetched", c.stats.fetched.Load()),
		logging.Int64("retried", c.stats.retried.Load()))
	return err
}

// ValidateConsumerConfig checks the required fields.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	switch {
	case len(cfg.Brokers) == 0:
		return errors.New(errors.ErrCodeValidation, "brokers required")
	case cfg.GroupID == "":
		return errors.New(errors.ErrCodeValidation, "group_id required")
	case len(cfg.Topics) == 0:
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	case cfg.Retry.MaxRetries < 0:
		return errors.New(errors.ErrCodeValidation, "max_retries must be >= 0")
	}
	switch cfg.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return errors.New(errors.ErrCodeValidation, "invalid auto_offset_reset").WithDetail(cfg.AutoOffsetReset)
	}
	return cfg.SecurityConfig.validate()
}

//Personal.AI order the ending

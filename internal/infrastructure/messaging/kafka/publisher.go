package kafka

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// BreakerConfig tunes the circuit breaker in front of the events topic.
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	MinRequests      uint32        `mapstructure:"min_requests"`
}

// DefaultBreakerConfig trips after 5 requests with at least 60% failures and
// probes again after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type messagePublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// EventPublisher publishes molecule lifecycle events.  A broker outage opens
// the breaker so uploads are not slowed by publish timeouts.
type EventPublisher struct {
	producer messagePublisher
	breaker  *gobreaker.CircuitBreaker
	topic    string
	source   string
	logger   logging.Logger
}

// NewEventPublisher wraps producer with a breaker named after topic.
func NewEventPublisher(producer messagePublisher, topic, source string, cfg BreakerConfig, logger logging.Logger) *EventPublisher {
	if topic == "" {
		topic = TopicMoleculeEvents
	}
	def := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	p := &EventPublisher{producer: producer, topic: topic, source: source, logger: logger}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka:" + topic,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Rejected messages say nothing about broker health.
			return err == nil || errors.IsCode(err, errors.ErrCodeValidation) || errors.IsCode(err, errors.ErrCodePayloadTooLarge)
		},
	})
	return p
}

// PublishMoleculeEvent writes ev keyed by molecule id, so events for one
// molecule stay ordered within a partition.
func (p *EventPublisher) PublishMoleculeEvent(ctx context.Context, ev *mtypes.MoleculeEvent) error {
	env, err := NewEventEnvelope(ev.EventType, p.source, ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		env.EventID = ev.EventID
	}
	msg, err := env.ToMessage(p.topic, []byte(ev.MoleculeID.String()))
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "event publishing suspended").WithDetail(p.topic)
	case err != nil:
		return err
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (p *EventPublisher) State() gobreaker.State {
	return p.breaker.State()
}

//Personal.AI order the ending

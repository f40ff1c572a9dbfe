package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/testutil"
	apperrors "github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

// chanReader delivers queued messages and then blocks until cancelled.
type chanReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    atomic.Bool
}

func newChanReader(msgs ...kafka.Message) *chanReader {
	r := &chanReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *chanReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*common.ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *common.ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*common.ProducerMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*common.ProducerMessage(nil), p.msgs...)
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "molstruct-worker",
		Topics:  []string{TopicIngestRequested},
		Retry: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: TopicIngestDeadLetter,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	t.Parallel()
	valid := testConsumerConfig()
	assert.NoError(t, ValidateConsumerConfig(valid))

	noGroup := valid
	noGroup.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(noGroup))

	noTopics := valid
	noTopics.Topics = nil
	assert.Error(t, ValidateConsumerConfig(noTopics))

	badReset := valid
	badReset.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(badReset))
}

func TestConsumer_StartTwice(t *testing.T) {
	c := newConsumerWithReader(newChanReader(), testConsumerConfig(), logging.NewNopLogger())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

func TestConsumer_DispatchAndCommit(t *testing.T) {
	reader := newChanReader(
		kafka.Message{Topic: TopicIngestRequested, Offset: 7, Value: []byte(`{"bucket":"b"}`),
			Headers: []kafka.Header{{Key: "trace", Value: []byte("abc")}}},
	)
	c := newConsumerWithReader(reader, testConsumerConfig(), logging.NewNopLogger())

	got := make(chan *common.Message, 1)
	c.Subscribe(TopicIngestRequested, func(_ context.Context, msg *common.Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))

	select {
	case msg := <-got:
		assert.Equal(t, int64(7), msg.Offset)
		assert.Equal(t, "abc", msg.Headers["trace"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed.Load())

	processed, failed, _ := c.Stats()
	assert.Equal(t, int64(1), processed)
	assert.Zero(t, failed)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	reader := newChanReader(kafka.Message{Topic: TopicIngestRequested, Offset: 1, Key: []byte("k"), Value: []byte("v")})
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(reader, testConsumerConfig(), logging.NewNopLogger(), WithDeadLetterPublisher(dlq))

	var calls atomic.Int32
	c.Subscribe(TopicIngestRequested, func(context.Context, *common.Message) error {
		calls.Add(1)
		return errors.New("storage unavailable")
	})
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, int32(3), calls.Load())
	msgs := dlq.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicIngestDeadLetter, msgs[0].Topic)
	assert.Equal(t, TopicIngestRequested, msgs[0].Headers["original_topic"])
	assert.Equal(t, "storage unavailable", msgs[0].Headers["error_message"])

	_, failed, dead := c.Stats()
	assert.Equal(t, int64(1), failed)
	assert.Equal(t, int64(1), dead)
}

func TestConsumer_NonRetryableSkipsRetries(t *testing.T) {
	reader := newChanReader(kafka.Message{Topic: TopicIngestRequested, Value: []byte("v")})
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(reader, testConsumerConfig(), logging.NewNopLogger(),
		WithDeadLetterPublisher(dlq),
		WithRetryClassifier(func(err error) bool { return !apperrors.IsParseError(err) }))

	var calls atomic.Int32
	c.Subscribe(TopicIngestRequested, func(context.Context, *common.Message) error {
		calls.Add(1)
		return apperrors.EmptyMolecule()
	})
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(dlq.published()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), calls.Load())
}

func TestConsumer_UnknownTopicCommitted(t *testing.T) {
	reader := newChanReader(kafka.Message{Topic: "other", Offset: 3, Value: []byte("v")})
	log := testutil.NewMockLogger()
	c := newConsumerWithReader(reader, testConsumerConfig(), log)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, log.HasMessage("warn", "No handler for topic"))
}

func TestConsumer_DeadLetterFailureStillCommits(t *testing.T) {
	reader := newChanReader(kafka.Message{Topic: TopicIngestRequested, Offset: 9, Value: []byte("v")})
	dlq := &recordingPublisher{err: errors.New("broker down")}
	cfg := testConsumerConfig()
	c := newConsumerWithReader(reader, cfg, logging.NewNopLogger(), WithDeadLetterPublisher(dlq),
		WithRetryClassifier(func(error) bool { return false }))
	c.Subscribe(TopicIngestRequested, func(context.Context, *common.Message) error { return errors.New("boom") })
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	_, _, dead := c.Stats()
	assert.Zero(t, dead)
}

func TestConsumer_HandlerTimeout(t *testing.T) {
	reader := newChanReader(kafka.Message{Topic: TopicIngestRequested, Value: []byte("v")})
	cfg := testConsumerConfig()
	cfg.HandlerTimeout = 10 * time.Millisecond
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(reader, cfg, logging.NewNopLogger(), WithDeadLetterPublisher(dlq),
		WithRetryClassifier(func(error) bool { return false }))
	c.Subscribe(TopicIngestRequested, func(ctx context.Context, _ *common.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(dlq.published()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
}

//Personal.AI order the ending

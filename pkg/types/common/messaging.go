package common

import (
	"context"
	"time"
)

// ProducerMessage is handed to a broker producer.  A zero Timestamp is
// stamped at send time.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Message is delivered to a MessageHandler.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message; an error triggers the consumer's
// retry policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// TopicConfig describes a topic ensured at startup.
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	Config            map[string]string
}

//Personal.AI order the ending

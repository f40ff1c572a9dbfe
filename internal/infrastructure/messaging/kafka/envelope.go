package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

const envelopeSchemaVersion = "v1"

// Header keys copied from the envelope so consumers can route without
// decoding the body.
const (
	HeaderEventType     = "event_type"
	HeaderSource        = "source_service"
	HeaderSchemaVersion = "schema_version"
)

// EventEnvelope is the JSON body of every message this service writes.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "event payload is not serialisable")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: envelopeSchemaVersion,
		Payload:       raw,
	}, nil
}

// DecodePayload fails with a validation error when the payload is absent.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	switch string(e.Payload) {
	case "", "null":
		return errors.New(errors.ErrCodeValidation, "envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "event payload does not match the expected type")
	}
	return nil
}

func (e *EventEnvelope) ToMessage(topic string, key []byte) (*common.ProducerMessage, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "envelope is not serialisable")
	}
	return &common.ProducerMessage{
		Topic: topic,
		Key:   key,
		Value: body,
		Headers: map[string]string{
			HeaderEventType:     e.EventType,
			HeaderSource:        e.Source,
			HeaderSchemaVersion: e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

func MessageToEventEnvelope(msg *common.Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "message has no body").WithDetail(msg.Topic)
	}
	env := new(EventEnvelope)
	if err := json.Unmarshal(msg.Value, env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "message body is not an event envelope")
	}
	return env, nil
}

//Personal.AI order the ending

// Package common holds the wire-level types shared by the API, the SDK and
// the messaging layer.
package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID is a UUID in its canonical string form.
type ID string

func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

func (id ID) Validate() error {
	if id == "" {
		return errors.New("id is empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("id %q is not a uuid: %w", string(id), err)
	}
	return nil
}

// Timestamp is a UTC instant serialised as an RFC 3339 string with
// nanoseconds.
type Timestamp time.Time

func NewTimestamp() Timestamp { return Timestamp(time.Now().UTC()) }

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).UTC().Format(time.RFC3339Nano)), nil
}

// UnmarshalText accepts any RFC 3339 value and normalises it to UTC.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(parsed.UTC())
	return nil
}

//Personal.AI order the ending

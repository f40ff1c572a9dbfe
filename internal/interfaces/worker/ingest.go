// Package worker holds the message handlers run by the ingest worker.
package worker

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	appMol "github.com/turtacn/molstruct/internal/application/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// Ingester is the slice of the molecule service the worker needs.
type Ingester interface {
	IngestObject(ctx context.Context, input *appMol.IngestObjectInput) (*mtypes.MoleculeDTO, error)
}

// IngestHandler turns ingest requests into parsed, stored molecules.
type IngestHandler struct {
	svc      Ingester
	validate *validator.Validate
	logger   logging.Logger
}

// NewIngestHandler creates the handler for TopicIngestRequested.
func NewIngestHandler(svc Ingester, logger logging.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, validate: validator.New(), logger: logger}
}

// Topic returns the topic this handler consumes.
func (h *IngestHandler) Topic() string { return kafka.TopicIngestRequested }

// Handle decodes one envelope and ingests the referenced object.  Malformed
// envelopes are reported with a validation code so the consumer does not
// retry them.
func (h *IngestHandler) Handle(ctx context.Context, msg *common.Message) error {
	start := time.Now()
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	var req mtypes.IngestRequest
	if err := env.DecodePayload(&req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid ingest request").WithDetail(env.EventID)
	}

	dto, err := h.svc.IngestObject(ctx, &appMol.IngestObjectInput{
		Bucket:    req.Bucket,
		ObjectKey: req.ObjectKey,
		Filename:  req.Filename,
		Format:    req.Format,
	})
	if err != nil {
		h.logger.Warn("ingest failed",
			logging.String("bucket", req.Bucket),
			logging.String("object_key", req.ObjectKey),
			logging.String(logging.FieldErrorCode, string(errors.GetCode(err))),
			logging.Err(err))
		return err
	}

	h.logger.Info("object ingested",
		logging.String(logging.FieldMoleculeID, dto.ID.String()),
		logging.String("object_key", req.ObjectKey),
		logging.String("formula", dto.Formula),
		logging.Duration("took", time.Since(start)))
	return nil
}

// MessageRecorder receives the outcome of every handled message.
type MessageRecorder interface {
	RecordMessage(topic string, duration time.Duration, err error)
}

// Instrument wraps next so each call is reported to rec.
func Instrument(next common.MessageHandler, rec MessageRecorder) common.MessageHandler {
	if rec == nil {
		return next
	}
	return func(ctx context.Context, msg *common.Message) error {
		start := time.Now()
		err := next(ctx, msg)
		rec.RecordMessage(msg.Topic, time.Since(start), err)
		return err
	}
}

// permanentCodes are failures that redelivery cannot fix.
var permanentCodes = []errors.ErrorCode{
	errors.ErrCodeValidation,
	errors.ErrCodeSerialization,
	errors.ErrCodeBadRequest,
	errors.ErrCodePayloadTooLarge,
	errors.ErrCodeMoleculeTooLarge,
	errors.ErrCodeMoleculeUnsupportedFormat,
}

// Retryable reports whether a handler error may succeed on redelivery.
// Parse failures, missing objects and rejected requests are permanent.
func Retryable(err error) bool {
	if errors.IsParseError(err) || errors.IsNotFound(err) {
		return false
	}
	for _, code := range permanentCodes {
		if errors.IsCode(err, code) {
			return false
		}
	}
	return true
}

//Personal.AI order the ending

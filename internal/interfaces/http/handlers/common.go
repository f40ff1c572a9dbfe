// Package handlers implements the REST endpoints of the molstruct API server.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxJSONBody     = 1 << 20
)

// parsePagination extracts page and page_size from query parameters.
// Invalid values fall back to the defaults.
func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := defaultPageSize

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= maxPageSize {
			pageSize = ps
		}
	}
	return page, pageSize
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError renders err as a common.ErrorResponse.  The status comes from
// the error code; errors without an AppError in their chain, and every 5xx,
// are masked as internal errors.
func WriteError(w http.ResponseWriter, err error) {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		writeJSON(w, http.StatusInternalServerError, common.ErrorResponse{
			Code:    errors.ErrCodeInternal.String(),
			Message: "internal server error",
		})
		return
	}
	status := errors.HTTPStatusForCode(ae.Code)
	if status >= http.StatusInternalServerError && ae.Code != errors.ErrCodeServiceUnavailable {
		writeJSON(w, status, common.ErrorResponse{
			Code:    ae.Code.String(),
			Message: errors.DefaultMessageForCode(ae.Code),
		})
		return
	}
	writeJSON(w, status, common.ErrorResponse{
		Code:    ae.Code.String(),
		Message: ae.Message,
		Detail:  ae.Detail,
	})
}

// logFailure logs err at a level matching its status class.
func logFailure(logger logging.Logger, r *http.Request, msg string, err error) {
	fields := []logging.Field{
		logging.String("path", r.URL.Path),
		logging.String(logging.FieldErrorCode, errors.GetCode(err).String()),
		logging.Err(err),
	}
	if errors.IsClientError(errors.GetCode(err)) {
		logger.Debug(msg, fields...)
		return
	}
	logger.Error(msg, fields...)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New(errors.ErrCodeBadRequest, "invalid JSON body").WithDetail(err.Error())
	}
	if err := v.Struct(dst); err != nil {
		return errors.New(errors.ErrCodeValidation, "request validation failed").WithDetail(formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

//Personal.AI order the ending

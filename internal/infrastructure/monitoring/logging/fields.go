package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Keys used across middleware, services and adapters.
const (
	FieldRequestID  = "request_id"
	FieldMoleculeID = "molecule_id"
	FieldFormat     = "format"
	FieldEngine     = "engine"
	FieldErrorCode  = "error_code"
)

// Field is a zap field.  Callers build them with the constructors below so
// that only this package imports zap.
type Field = zap.Field

func String(key, val string) Field                 { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

// Err records err under "error".  A nil error yields a field that is skipped.
func Err(err error) Field { return zap.Error(err) }

// Values flattens fields into a map the way an encoder would see them.
// Integers come back as int64.
func Values(fields ...Field) map[string]interface{} {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}

//Personal.AI order the ending

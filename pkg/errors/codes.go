package errors

import (
	"net/http"
	"strings"
)

// ErrorCode identifies a failure category.  Codes are "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string { return string(c) }

// Module is the prefix before the first underscore, or "UNKNOWN".
func (c ErrorCode) Module() string {
	if mod, _, ok := strings.Cut(string(c), "_"); ok && mod != "" {
		return mod
	}
	return "UNKNOWN"
}

const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodePayloadTooLarge    ErrorCode = "COMMON_017"

	ErrCodeMoleculeInvalidSMILES     ErrorCode = "MOL_001"
	ErrCodeMoleculeUnsupportedFormat ErrorCode = "MOL_003"
	ErrCodeMoleculeNotFound          ErrorCode = "MOL_004"
	ErrCodeMoleculeMalformedInput    ErrorCode = "MOL_006"
	ErrCodeMoleculeTooLarge          ErrorCode = "MOL_010"
	ErrCodeMoleculeUndecodableInput  ErrorCode = "MOL_016"
	ErrCodeMoleculeUnsupportedElem   ErrorCode = "MOL_017"
	ErrCodeMoleculeEmpty             ErrorCode = "MOL_018"
	ErrCodeMoleculeGeometryFixed     ErrorCode = "MOL_019"
)

// Short names used by the service and storage layers.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")

	CodeInternal         = ErrCodeInternal
	CodeInvalidParam     = ErrCodeBadRequest
	CodeNotFound         = ErrCodeNotFound
	CodeConflict         = ErrCodeConflict
	CodeMoleculeNotFound = ErrCodeMoleculeNotFound

	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
)

type codeInfo struct {
	status  int
	message string
}

var codeTable = map[ErrorCode]codeInfo{
	ErrCodeInternal:           {http.StatusInternalServerError, "internal server error"},
	ErrCodeBadRequest:         {http.StatusBadRequest, "bad request"},
	ErrCodeUnauthorized:       {http.StatusUnauthorized, "authentication required"},
	ErrCodeForbidden:          {http.StatusForbidden, "access denied"},
	ErrCodeNotFound:           {http.StatusNotFound, "resource not found"},
	ErrCodeConflict:           {http.StatusConflict, "resource conflict"},
	ErrCodeTooManyRequests:    {http.StatusTooManyRequests, "too many requests"},
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, "service unavailable"},
	ErrCodeTimeout:            {http.StatusGatewayTimeout, "request timeout"},
	ErrCodeValidation:         {http.StatusUnprocessableEntity, "validation failed"},
	ErrCodeSerialization:      {http.StatusInternalServerError, "serialization failed"},
	ErrCodeDatabaseError:      {http.StatusInternalServerError, "database error"},
	ErrCodeCacheError:         {http.StatusInternalServerError, "cache error"},
	ErrCodeExternalService:    {http.StatusBadGateway, "external service error"},
	ErrCodePayloadTooLarge:    {http.StatusRequestEntityTooLarge, "payload too large"},

	ErrCodeMoleculeInvalidSMILES:     {http.StatusBadRequest, "invalid SMILES string"},
	ErrCodeMoleculeUnsupportedFormat: {http.StatusBadRequest, "unsupported molecule format"},
	ErrCodeMoleculeNotFound:          {http.StatusNotFound, "molecule not found"},
	ErrCodeMoleculeMalformedInput:    {http.StatusBadRequest, "malformed molecule input"},
	ErrCodeMoleculeTooLarge:          {http.StatusRequestEntityTooLarge, "molecule exceeds the configured atom limit"},
	ErrCodeMoleculeUndecodableInput:  {http.StatusBadRequest, "input could not be decoded as text"},
	ErrCodeMoleculeUnsupportedElem:   {http.StatusBadRequest, "unsupported element"},
	ErrCodeMoleculeEmpty:             {http.StatusBadRequest, "no atoms parsed"},
	ErrCodeMoleculeGeometryFixed:     {http.StatusConflict, "molecule geometry cannot be regenerated"},
}

// HTTPStatusForCode maps code to a response status; unknown codes are 500.
func HTTPStatusForCode(code ErrorCode) int {
	if info, ok := codeTable[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode is the client-safe text for code.
func DefaultMessageForCode(code ErrorCode) string {
	if info, ok := codeTable[code]; ok {
		return info.message
	}
	return "unknown error"
}

func IsClientError(code ErrorCode) bool { return HTTPStatusForCode(code)/100 == 4 }

func IsServerError(code ErrorCode) bool { return HTTPStatusForCode(code)/100 == 5 }

//Personal.AI order the ending

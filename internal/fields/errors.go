package fields

import (
	"errors"
	"fmt"
)

// ContractError reports input that violates the detection contract: something the
// upstream layout collaborator must fix, as opposed to poor data quality which the
// pipeline degrades around.
type ContractError struct {
	Type    ContractErrorType `json:"type"`
	Message string            `json:"message"`
	Index   int               `json:"index"` // detection position, -1 for payload-level errors
	Field   string            `json:"field,omitempty"`
}

// ContractErrorType categorises contract violations
type ContractErrorType int

const (
	ContractErrorUnknown ContractErrorType = iota
	ContractErrorMissingPayload
	ContractErrorMissingValue
	ContractErrorInvalidSource
	ContractErrorInvalidPage
	ContractErrorSchema
)

// Error implements the error interface
func (e *ContractError) Error() string {
	if e.Index >= 0 {
		if e.Field != "" {
			return fmt.Sprintf("[%s] detection %d, %s: %s", e.Type.String(), e.Index, e.Field, e.Message)
		}
		return fmt.Sprintf("[%s] detection %d: %s", e.Type.String(), e.Index, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

// String returns a string representation of the ContractErrorType
func (t ContractErrorType) String() string {
	switch t {
	case ContractErrorMissingPayload:
		return "MISSING_PAYLOAD"
	case ContractErrorMissingValue:
		return "MISSING_VALUE"
	case ContractErrorInvalidSource:
		return "INVALID_SOURCE"
	case ContractErrorInvalidPage:
		return "INVALID_PAGE"
	case ContractErrorSchema:
		return "SCHEMA_VIOLATION"
	default:
		return "UNKNOWN"
	}
}

// NewContractError creates a ContractError for the detection at index
func NewContractError(errorType ContractErrorType, index int, field, message string) *ContractError {
	return &ContractError{
		Type:    errorType,
		Message: message,
		Index:   index,
		Field:   field,
	}
}

// IsContractError reports whether err is, or wraps, a ContractError
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

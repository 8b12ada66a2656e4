package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prefeitura-canaa/demanda-service/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInternalError hides err behind a generic 500.
func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// sentinelMapping is evaluated in order; the first match wins. Storage errors
// wrap the context error, so the deadline entry precedes them.
var sentinelMapping = []struct {
	target  error
	code    string
	message string
	status  int
}{
	{domain.ErrInvalidIdentifier, "INVALID_IDENTIFIER", "ID inválido", http.StatusBadRequest},
	{domain.ErrInvalidStatus, "INVALID_STATUS", "Status inválido", http.StatusBadRequest},
	{domain.ErrIndexOutOfRange, "INDEX_OUT_OF_RANGE", "Índice de entrega inválido", http.StatusBadRequest},
	{domain.ErrValidation, "VALIDATION_FAILED", "dados inválidos", http.StatusBadRequest},
	{domain.ErrNoDataForPeriod, "NO_DATA_FOR_PERIOD", "Nenhuma demanda encontrada para este mês", http.StatusNotFound},
	{domain.ErrNotFound, "NOT_FOUND", "Demanda não encontrada", http.StatusNotFound},
	{context.DeadlineExceeded, "TIMEOUT", "tempo limite excedido", http.StatusGatewayTimeout},
	{domain.ErrStorageUnavailable, "STORAGE_UNAVAILABLE", "armazenamento indisponível", http.StatusServiceUnavailable},
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, m := range sentinelMapping {
		if errors.Is(err, m.target) {
			de := &DomainError{Code: m.code, Message: m.message, HTTPStatus: m.status, Err: err}
			if m.status == http.StatusBadRequest {
				de.Details = map[string]any{"reason": err.Error()}
			}
			return de
		}
	}
	return NewInternalError(err)
}

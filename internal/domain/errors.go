package domain

import "errors"

var (
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrNotFound           = errors.New("demanda not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrIndexOutOfRange    = errors.New("delivery index out of range")
	ErrNoDataForPeriod    = errors.New("no demandas for period")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrValidation         = errors.New("validation failed")

	// ErrAttachmentDecode marks an image payload the report could not embed.
	// It is logged and never returned to callers.
	ErrAttachmentDecode = errors.New("attachment decode failure")
)
